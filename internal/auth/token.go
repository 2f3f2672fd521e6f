package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// BearerPrefix marks tokens handed to transport. Signing and verification
// work on the bare token.
const BearerPrefix = "Bearer "

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		tm.now = now
	}
}

// NewTokenManager builds a new manager.
func NewTokenManager(cfg config.AuthConfig, opts ...TokenOption) *TokenManager {
	tm := &TokenManager{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
	if tm.accessTTL <= 0 {
		tm.accessTTL = 24 * time.Hour
	}
	if tm.refreshTTL <= 0 {
		tm.refreshTTL = 14 * 24 * time.Hour
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Claims describes JWT payload. Role is empty on refresh tokens.
type Claims struct {
	Role domain.Role `json:"auth,omitempty"`
	jwt.RegisteredClaims
}

// AccessTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration { return tm.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (tm *TokenManager) RefreshTTL() time.Duration { return tm.refreshTTL }

// IssueAccessToken signs an access token carrying the role claim.
func (tm *TokenManager) IssueAccessToken(email string, role domain.Role) (string, time.Time, error) {
	if !role.Valid() {
		return "", time.Time{}, errors.New("cannot issue access token for unknown role")
	}
	return tm.issue(email, role, tm.accessTTL)
}

// IssueRefreshToken signs a refresh token without a role claim.
func (tm *TokenManager) IssueRefreshToken(email string) (string, time.Time, error) {
	return tm.issue(email, "", tm.refreshTTL)
}

func (tm *TokenManager) issue(email string, role domain.Role, ttl time.Duration) (string, time.Time, error) {
	if email == "" {
		return "", time.Time{}, errors.New("cannot issue token without subject")
	}
	now := tm.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return WithBearer(tokenString), claims.ExpiresAt.Time, nil
}

// Validate reports whether the bare token has a valid signature and has not
// expired. A token at exactly its expiry instant is invalid. A token still
// carrying the bearer prefix never validates.
func (tm *TokenManager) Validate(raw string) bool {
	claims, err := tm.parse(raw)
	if err != nil {
		return false
	}
	return tm.now().Before(claims.ExpiresAt.Time)
}

// Claims returns the claims of a bare token that passed Validate.
func (tm *TokenManager) Claims(raw string) (*Claims, error) {
	claims, err := tm.parse(raw)
	if err != nil {
		return nil, err
	}
	if !tm.now().Before(claims.ExpiresAt.Time) {
		return nil, jwt.ErrTokenExpired
	}
	return claims, nil
}

// RemainingLifetime returns expiry minus now, floored at zero. Unparseable
// tokens have no remaining lifetime.
func (tm *TokenManager) RemainingLifetime(raw string) time.Duration {
	claims, err := tm.parse(raw)
	if err != nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(tm.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// parse verifies the signature and structure. Expiry is checked by the
// callers against tm.now so the clock stays injectable.
func (tm *TokenManager) parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("empty token")
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, errors.New("token missing subject or expiry")
	}
	return claims, nil
}

// StripBearer removes the bearer prefix if present.
func StripBearer(token string) string {
	return strings.TrimPrefix(token, BearerPrefix)
}

// WithBearer adds the bearer prefix.
func WithBearer(token string) string {
	return BearerPrefix + token
}
