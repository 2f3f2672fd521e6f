package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/marketplace-auth/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sessions       *handlers.SessionHandler
	Accounts       *handlers.AccountHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/signin", cfg.Sessions.SignIn)
	authGroup.Post("/refresh", cfg.Sessions.Refresh)
	authGroup.Post("/signout", auth.RequireAuthenticated(), cfg.Sessions.SignOut)
	authGroup.Post("/signup", cfg.Accounts.Signup)
	authGroup.Get("/email/exists", cfg.Accounts.EmailExists)
	authGroup.Get("/nickname/exists", cfg.Accounts.NicknameExists)

	api.Get("/users/me", auth.RequireAuthenticated(), cfg.Accounts.Me)
	api.Get("/admin/ping", auth.RequireRole(domain.RoleManager, domain.RoleMaster), cfg.Accounts.AdminPing)
}
