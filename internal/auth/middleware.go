package auth

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"

	// RemainingHeader carries the access token's remaining lifetime in
	// milliseconds once it drops under the warning threshold.
	RemainingHeader = "X-Token-Remaining"
)

// Principal represents the authenticated caller.
type Principal struct {
	Email     string
	Role      domain.Role
	Token     string
	ExpiresAt time.Time
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions repository.SessionRepository
	warning  time.Duration
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions repository.SessionRepository, warning time.Duration, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, sessions: sessions, warning: warning, logger: logger}
}

// Handle establishes the principal for requests carrying a valid, unrevoked
// access token. Requests without a usable token continue anonymously and are
// turned away by RequireAuthenticated or RequireRole where needed.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Next()
	}
	if !m.tokens.Validate(raw) {
		m.logger.Debug("ignoring invalid access token", zap.String("path", c.Path()))
		return c.Next()
	}
	claims, err := m.tokens.Claims(raw)
	if err != nil || !claims.Role.Valid() {
		return c.Next()
	}

	revoked, err := m.sessions.IsRevoked(c.UserContext(), raw)
	if err != nil {
		return err
	}
	if revoked {
		return apperrors.ErrSessionTerminated
	}

	if remaining := m.tokens.RemainingLifetime(raw); remaining <= m.warning {
		c.Set(RemainingHeader, strconv.FormatInt(remaining.Milliseconds(), 10))
	}

	c.Locals(principalKey, &Principal{
		Email:     claims.Subject,
		Role:      claims.Role,
		Token:     raw,
		ExpiresAt: claims.ExpiresAt.Time,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
