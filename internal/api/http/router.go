package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Issues         *handlers.IssuesHandler
	Analytics      *handlers.AnalyticsHandler
	Notifications  *handlers.NotificationsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	issues := app.Group("/issues", cfg.AuthMiddleware.Handle)
	issues.Post("/", auth.RequireRole(domain.RoleCitizen), cfg.Issues.Create)
	issues.Get("/", cfg.Issues.List)
	// static paths before /:id
	issues.Get("/stats", cfg.Analytics.Stats)
	issues.Get("/chart", cfg.Analytics.Chart)
	issues.Get("/analytics", cfg.Analytics.Analytics)
	issues.Get("/export", auth.RequireRole(domain.RoleAdmin), cfg.Analytics.Export)
	issues.Get("/:id", cfg.Issues.Get)
	issues.Patch("/:id", cfg.Issues.Update)
	issues.Delete("/:id", cfg.Issues.Delete)
	issues.Patch("/:id/status", cfg.Issues.Transition)
	issues.Get("/:id/history", cfg.Issues.History)

	notifications := app.Group("/notifications", cfg.AuthMiddleware.Handle)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Patch("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Post("/sla/sweep", cfg.Admin.RunSweep)
}
