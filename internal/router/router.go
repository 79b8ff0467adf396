package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/isms-go-api/internal/config"
	"github.com/noah-isme/isms-go-api/internal/handler"
	"github.com/noah-isme/isms-go-api/internal/middleware"
	"github.com/noah-isme/isms-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuditLogHandler      *handler.AuditLogHandler
	WorkflowHandler      *handler.WorkflowHandler
	IncidentHandler      *handler.IncidentHandler
	DocumentHandler      *handler.DocumentHandler
	TreatmentPlanHandler *handler.TreatmentPlanHandler
	NotificationHandler  *handler.NotificationHandler
	JWTMiddleware        fiber.Handler
	SessionMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	sessionMiddleware := deps.SessionMiddleware
	if sessionMiddleware == nil {
		sessionMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Actor binding follows authentication so audit records carry the user.
	protected := app.Group("/api/v1", jwtMiddleware, middleware.ActorContext(), sessionMiddleware)

	if deps.AuditLogHandler != nil {
		deps.AuditLogHandler.Register(protected.Group("/audit-logs"))
	}

	if deps.WorkflowHandler != nil {
		deps.WorkflowHandler.Register(protected.Group("/workflows"))
	}

	if deps.IncidentHandler != nil {
		deps.IncidentHandler.Register(protected.Group("/incidents"))
	}

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.Register(protected.Group("/documents"))
	}

	if deps.TreatmentPlanHandler != nil {
		deps.TreatmentPlanHandler.Register(protected.Group("/treatment-plans"))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(protected.Group("/notifications"))
	}
}
