package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

const (
	refreshKeyPrefix    = "RT:"
	revocationKeyPrefix = "BL:"
	profileKeyPrefix    = "login:"
	revocationMarker    = "logout"
)

// ErrPointerMismatch is returned by RotateRefreshPointer when the stored
// pointer no longer equals the expected token.
var ErrPointerMismatch = errors.New("refresh pointer changed")

// rotateScript swaps the refresh pointer only if it still holds the expected token.
var rotateScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  return 1
end
return 0
`)

// SessionRepository is the TTL-aware session store: one refresh pointer per
// identity, one revocation entry per signed-out access token, and a
// best-effort profile snapshot.
type SessionRepository interface {
	PutRefreshPointer(ctx context.Context, email, refreshToken string, ttl time.Duration) error
	GetRefreshPointer(ctx context.Context, email string) (string, bool, error)
	DeleteRefreshPointer(ctx context.Context, email string) error
	RotateRefreshPointer(ctx context.Context, email, expected, next string, ttl time.Duration) error
	PutRevocation(ctx context.Context, accessToken string, ttl time.Duration) error
	IsRevoked(ctx context.Context, accessToken string) (bool, error)
	PutProfile(ctx context.Context, profile domain.Profile, ttl time.Duration) error
	GetProfile(ctx context.Context, email string) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, email string) error
}

type sessionRepository struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewSessionRepository returns a Redis-backed session store. Every call is
// bounded by opTimeout and any failure surfaces as StoreUnavailable.
func NewSessionRepository(client redis.UniversalClient, opTimeout time.Duration) SessionRepository {
	if opTimeout <= 0 {
		opTimeout = time.Second
	}
	return &sessionRepository{client: client, opTimeout: opTimeout}
}

func (r *sessionRepository) PutRefreshPointer(ctx context.Context, email, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("refresh pointer ttl must be positive, got %s", ttl)
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.client.Set(ctx, refreshKey(email), refreshToken, ttl).Err(); err != nil {
		return storeErr("put refresh pointer", err)
	}
	return nil
}

func (r *sessionRepository) GetRefreshPointer(ctx context.Context, email string) (string, bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	val, err := r.client.Get(ctx, refreshKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get refresh pointer", err)
	}
	return val, true, nil
}

func (r *sessionRepository) DeleteRefreshPointer(ctx context.Context, email string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.client.Del(ctx, refreshKey(email)).Err(); err != nil {
		return storeErr("delete refresh pointer", err)
	}
	return nil
}

func (r *sessionRepository) RotateRefreshPointer(ctx context.Context, email, expected, next string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("refresh pointer ttl must be positive, got %s", ttl)
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	swapped, err := rotateScript.Run(ctx, r.client, []string{refreshKey(email)}, expected, next, ttl.Milliseconds()).Int()
	if err != nil {
		return storeErr("rotate refresh pointer", err)
	}
	if swapped != 1 {
		return ErrPointerMismatch
	}
	return nil
}

// PutRevocation ignores non-positive TTLs: the token has already expired and
// a zero TTL would make the entry permanent.
func (r *sessionRepository) PutRevocation(ctx context.Context, accessToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.client.Set(ctx, revocationKey(accessToken), revocationMarker, ttl).Err(); err != nil {
		return storeErr("put revocation", err)
	}
	return nil
}

func (r *sessionRepository) IsRevoked(ctx context.Context, accessToken string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	n, err := r.client.Exists(ctx, revocationKey(accessToken)).Result()
	if err != nil {
		return false, storeErr("check revocation", err)
	}
	return n == 1, nil
}

func (r *sessionRepository) PutProfile(ctx context.Context, profile domain.Profile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.client.Set(ctx, profileKey(profile.Email), data, ttl).Err(); err != nil {
		return storeErr("put profile", err)
	}
	return nil
}

// GetProfile returns nil without error on a cache miss.
func (r *sessionRepository) GetProfile(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	data, err := r.client.Get(ctx, profileKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get profile", err)
	}
	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &profile, nil
}

func (r *sessionRepository) DeleteProfile(ctx context.Context, email string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.client.Del(ctx, profileKey(email)).Err(); err != nil {
		return storeErr("delete profile", err)
	}
	return nil
}

func (r *sessionRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, apperrors.NewStoreUnavailable(err))
}

func refreshKey(email string) string { return refreshKeyPrefix + email }
func revocationKey(token string) string { return revocationKeyPrefix + token }
func profileKey(email string) string { return profileKeyPrefix + email }
