package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/service"
	"github.com/noah-isme/isms-go-api/internal/utils"
)

// AuditLogHandler serves read access to the audit trail. There are no write
// endpoints: entries are produced exclusively by the capture pipeline.
type AuditLogHandler struct {
	service service.AuditQueryService
	logger  zerolog.Logger
}

// NewAuditLogHandler constructs a handler instance.
func NewAuditLogHandler(service service.AuditQueryService, logger zerolog.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_log_handler").Logger(),
	}
}

// Register binds the audit trail routes.
func (h *AuditLogHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *AuditLogHandler) list(c *fiber.Ctx) error {
	query := dto.AuditLogQuery{
		Page:       c.QueryInt("page", 1),
		PageSize:   c.QueryInt("page_size", 50),
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
	}

	entityID, err := parseQueryUint(c, "entity_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity_id")
	}
	query.EntityID = entityID

	actorID, err := parseQueryUint(c, "actor_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor_id")
	}
	query.ActorID = actorID

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid since timestamp")
		}
		query.Since = &since
	}

	entries, meta, err := h.service.List(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendPage(c, "audit trail", entries, meta)
}
