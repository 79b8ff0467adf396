package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/middleware"
	"github.com/noah-isme/isms-go-api/internal/service"
	"github.com/noah-isme/isms-go-api/internal/utils"
)

// WorkflowHandler serves workflow instance queries and approver decisions.
// Instances are never created here; they are started by the trigger
// evaluator in response to entity mutations.
type WorkflowHandler struct {
	service service.WorkflowService
	logger  zerolog.Logger
}

// NewWorkflowHandler constructs a handler instance.
func NewWorkflowHandler(service service.WorkflowService, logger zerolog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		service: service,
		logger:  logger.With().Str("component", "workflow_handler").Logger(),
	}
}

// Register binds the workflow routes.
func (h *WorkflowHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/pending", h.pendingApprovals)
	router.Get("/:id", h.get)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
	router.Post("/:id/cancel", h.cancel)
}

func (h *WorkflowHandler) list(c *fiber.Ctx) error {
	query := dto.WorkflowInstanceQuery{
		Page:       c.QueryInt("page", 1),
		PageSize:   c.QueryInt("page_size", 50),
		EntityType: c.Query("entity_type"),
		Status:     c.Query("status"),
	}

	entityID, err := parseQueryUint(c, "entity_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity_id")
	}
	query.EntityID = entityID

	instances, meta, err := h.service.List(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendPage(c, "workflow instances", instances, meta)
}

func (h *WorkflowHandler) pendingApprovals(c *fiber.Ctx) error {
	userID, ok := middleware.UserIDFromLocals(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	pending, err := h.service.PendingApprovals(requestContext(c), userID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "pending approvals", pending)
}

func (h *WorkflowHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid workflow instance id")
	}

	instance, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "workflow instance", instance)
}

func (h *WorkflowHandler) approve(c *fiber.Ctx) error {
	return h.decide(c, true)
}

func (h *WorkflowHandler) reject(c *fiber.Ctx) error {
	return h.decide(c, false)
}

func (h *WorkflowHandler) decide(c *fiber.Ctx, approved bool) error {
	userID, ok := middleware.UserIDFromLocals(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid workflow instance id")
	}

	var payload dto.WorkflowDecisionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	ctx := requestContext(c)
	var instance dto.WorkflowInstanceResponse
	if approved {
		instance, err = h.service.Approve(ctx, id, userID, payload.Comments)
	} else {
		instance, err = h.service.Reject(ctx, id, userID, payload.Comments)
	}
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "workflow decision applied", instance)
}

func (h *WorkflowHandler) cancel(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid workflow instance id")
	}

	var payload dto.WorkflowCancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	instance, err := h.service.Cancel(requestContext(c), id, payload.Reason)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "workflow instance cancelled", instance)
}
