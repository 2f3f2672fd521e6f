package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

type gateFixture struct {
	app      *fiber.App
	tokens   *TokenManager
	clock    *fakeClock
	sessions repository.SessionRepository
	redis    *miniredis.Miniredis
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	tokens, clock := newTestTokenManager(t)
	sessions := repository.NewSessionRepository(client, time.Second)
	gate := NewAuthMiddleware(tokens, sessions, 10*time.Minute, nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Use(gate.Handle)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(principal.Email + "/" + string(principal.Role))
	})
	app.Get("/me", RequireAuthenticated(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/admin", RequireRole(domain.RoleManager, domain.RoleMaster), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	return &gateFixture{app: app, tokens: tokens, clock: clock, sessions: sessions, redis: mr}
}

func (f *gateFixture) do(t *testing.T, path, authorization string) (int, string, http.Header) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func (f *gateFixture) accessToken(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	token, _, err := f.tokens.IssueAccessToken(email, role)
	require.NoError(t, err)
	return token
}

func TestGateAnonymousPassThrough(t *testing.T) {
	f := newGateFixture(t)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer garbage"} {
		status, body, _ := f.do(t, "/whoami", header)
		assert.Equal(t, http.StatusOK, status, header)
		assert.Equal(t, "anonymous", body, header)
	}
}

func TestGateEstablishesPrincipal(t *testing.T) {
	f := newGateFixture(t)
	token := f.accessToken(t, "kim@example.com", domain.RoleOwner)

	status, body, header := f.do(t, "/whoami", token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "kim@example.com/OWNER", body)
	assert.Empty(t, header.Get(RemainingHeader))
}

func TestGateIgnoresRefreshTokens(t *testing.T) {
	f := newGateFixture(t)
	refresh, _, err := f.tokens.IssueRefreshToken("kim@example.com")
	require.NoError(t, err)

	_, body, _ := f.do(t, "/whoami", refresh)
	assert.Equal(t, "anonymous", body)
}

func TestGateRejectsRevokedToken(t *testing.T) {
	f := newGateFixture(t)
	token := f.accessToken(t, "kim@example.com", domain.RoleCustomer)
	require.NoError(t, f.sessions.PutRevocation(context.Background(), StripBearer(token), time.Hour))

	status, body, _ := f.do(t, "/whoami", token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_ACCESS_DENIED", body)
}

func TestGateWarnsNearExpiry(t *testing.T) {
	f := newGateFixture(t)
	token := f.accessToken(t, "kim@example.com", domain.RoleCustomer)

	f.clock.Advance(55 * time.Minute)
	status, _, header := f.do(t, "/whoami", token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "300000", header.Get(RemainingHeader))

	f.clock.Advance(5 * time.Minute)
	_, body, _ := f.do(t, "/whoami", token)
	assert.Equal(t, "anonymous", body, "expired token must not authenticate")
}

func TestGateFailsClosedWhenStoreIsDown(t *testing.T) {
	f := newGateFixture(t)
	token := f.accessToken(t, "kim@example.com", domain.RoleCustomer)
	f.redis.Close()

	status, body, _ := f.do(t, "/whoami", token)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "STORE_UNAVAILABLE", body)

	status, body, _ = f.do(t, "/whoami", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
}

func TestRequireAuthenticated(t *testing.T) {
	f := newGateFixture(t)

	status, body, _ := f.do(t, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body)

	status, _, _ = f.do(t, "/me", f.accessToken(t, "kim@example.com", domain.RoleCustomer))
	assert.Equal(t, http.StatusOK, status)
}

func TestRequireRole(t *testing.T) {
	f := newGateFixture(t)

	cases := []struct {
		role   domain.Role
		status int
	}{
		{domain.RoleManager, http.StatusOK},
		{domain.RoleMaster, http.StatusOK},
		{domain.RoleOwner, http.StatusForbidden},
		{domain.RoleCustomer, http.StatusForbidden},
	}
	for _, tc := range cases {
		status, _, _ := f.do(t, "/admin", f.accessToken(t, "kim@example.com", tc.role))
		assert.Equal(t, tc.status, status, tc.role)
	}

	status, _, _ := f.do(t, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}
