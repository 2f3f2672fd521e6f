package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/repository"
)

const testPassword = "s3cret-pass"

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	getErr    error
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) add(t *testing.T, email, nickname string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, 4)
	require.NoError(t, err)
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test " + nickname,
		Nickname:     nickname,
		PasswordHash: hash,
		Role:         role,
	}
	r.mu.Lock()
	r.users[email] = user
	r.mu.Unlock()
	return user
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.users[user.Email]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.Email] = &cp
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	user, ok := r.users[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *user
	return &cp, nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[email]
	return ok, nil
}

func (r *fakeUserRepo) ExistsByNickname(_ context.Context, nickname string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(_ context.Context, e events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) subscribeAll(d events.Dispatcher) {
	for _, t := range []events.EventType{
		events.EventSignedUp,
		events.EventSignedIn,
		events.EventSignInFailed,
		events.EventTokenRefreshed,
		events.EventRefreshRejected,
		events.EventSignedOut,
	} {
		d.Subscribe(t, r.record)
	}
}

type sessionFixture struct {
	svc      *SessionService
	users    *fakeUserRepo
	sessions repository.SessionRepository
	tokens   *auth.TokenManager
	clock    *fakeClock
	redis    *miniredis.Miniredis
	events   *eventRecorder
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "service-test-secret-service-test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		ProfileCacheTTL: time.Hour,
		BcryptCost:      4,
	}
}

func newSessionFixture(t *testing.T, mutate ...func(*config.AuthConfig)) *sessionFixture {
	t.Helper()
	cfg := testAuthConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokenManager(cfg, auth.WithClock(clock.Now))
	sessions := repository.NewSessionRepository(client, time.Second)
	users := newFakeUserRepo()

	dispatcher := events.NewInMemoryDispatcher()
	recorder := &eventRecorder{}
	recorder.subscribeAll(dispatcher)

	svc := NewSessionService(cfg, SessionDependencies{
		UserRepo:    users,
		SessionRepo: sessions,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
	})
	return &sessionFixture{
		svc:      svc,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		clock:    clock,
		redis:    mr,
		events:   recorder,
	}
}
