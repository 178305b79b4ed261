package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/me", cfg.Users.Me)
	protected.Get("/dashboard", cfg.Dashboard.Dashboard)
	protected.Get("/users/employees", auth.RequireEmployee(), cfg.Tickets.ListAssignees)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	employeeOnly := tickets.Group("", auth.RequireEmployee())
	employeeOnly.Patch("/:id", cfg.Tickets.UpdateTicket)
	employeeOnly.Post("/:id/assign/self", cfg.Tickets.SelfAssign)
	employeeOnly.Delete("/:id", cfg.Tickets.DeleteTicket)

	protected.Get("/attachments/:id", cfg.Tickets.DownloadAttachment)
}
