package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/service"
	"github.com/noah-isme/isms-go-api/internal/utils"
)

// TreatmentPlanHandler manages the risk treatment plan endpoints.
type TreatmentPlanHandler struct {
	service service.TreatmentPlanService
	logger  zerolog.Logger
}

// NewTreatmentPlanHandler constructs a handler instance.
func NewTreatmentPlanHandler(service service.TreatmentPlanService, logger zerolog.Logger) *TreatmentPlanHandler {
	return &TreatmentPlanHandler{
		service: service,
		logger:  logger.With().Str("component", "treatment_plan_handler").Logger(),
	}
}

// Register binds the treatment plan routes.
func (h *TreatmentPlanHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
}

func (h *TreatmentPlanHandler) create(c *fiber.Ctx) error {
	var payload dto.TreatmentPlanCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "treatment plan created", plan)
}

func (h *TreatmentPlanHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid treatment plan id")
	}

	plan, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "treatment plan", plan)
}

func (h *TreatmentPlanHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid treatment plan id")
	}

	var payload dto.TreatmentPlanUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "treatment plan updated", plan)
}
