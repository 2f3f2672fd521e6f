package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-auth/internal/api/dto"
	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/service"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// SessionHandler exposes sign-in, refresh and sign-out.
type SessionHandler struct {
	sessions     *service.SessionService
	cookieName   string
	cookieSecure bool
	refreshTTL   time.Duration
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService, cfg config.AuthConfig) *SessionHandler {
	name := cfg.RefreshCookieName
	if name == "" {
		name = "refresh"
	}
	return &SessionHandler{
		sessions:     sessions,
		cookieName:   name,
		cookieSecure: cfg.RefreshCookieSecure,
		refreshTTL:   sessions.Tokens().RefreshTTL(),
	}
}

// SignIn handles POST /api/auth/signin.
func (h *SessionHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	pair, err := h.sessions.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.respondWithSession(c, pair)
}

// Refresh handles POST /api/auth/refresh. The token is read from the cookie only.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	cookie := c.Cookies(h.cookieName)
	if cookie == "" {
		return apperrors.ErrRefreshTokenMissing
	}

	pair, err := h.sessions.Refresh(c.UserContext(), auth.WithBearer(cookie))
	if err != nil {
		return err
	}
	return h.respondWithSession(c, pair)
}

// SignOut handles POST /api/auth/signout.
func (h *SessionHandler) SignOut(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.ErrAuthenticationRequired
	}

	if err := h.sessions.SignOut(c.UserContext(), principal.Token, principal.Email); err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{
		"data": dto.SignoutResponse{Email: principal.Email, Message: "signed out"},
	})
}

func (h *SessionHandler) respondWithSession(c *fiber.Ctx, pair *domain.TokenPair) error {
	c.Set(fiber.HeaderAuthorization, pair.AccessToken)
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    auth.StripBearer(pair.RefreshToken),
		Path:     "/",
		MaxAge:   int(h.refreshTTL / time.Second),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{
		"data": dto.NewSessionResponse(pair),
	})
}
