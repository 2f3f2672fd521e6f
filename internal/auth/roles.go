package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.ErrAuthenticationRequired
		}
		return c.Next()
	}
}

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.ErrAuthenticationRequired
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.ErrAccessDenied
		}
		return c.Next()
	}
}
