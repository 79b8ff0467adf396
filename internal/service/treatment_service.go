package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

// TreatmentPlanService manages risk treatment plans. New plans start in
// "planned" status, which is what makes the approval workflow fire.
type TreatmentPlanService interface {
	Create(ctx context.Context, payload dto.TreatmentPlanCreateRequest) (dto.TreatmentPlanResponse, error)
	Update(ctx context.Context, id uint, payload dto.TreatmentPlanUpdateRequest) (dto.TreatmentPlanResponse, error)
	Get(ctx context.Context, id uint) (dto.TreatmentPlanResponse, error)
}

type treatmentPlanService struct {
	risks     repository.RiskRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewTreatmentPlanService constructs the treatment plan service.
func NewTreatmentPlanService(risks repository.RiskRepository, validate *validator.Validate, logger zerolog.Logger) TreatmentPlanService {
	return &treatmentPlanService{
		risks:     risks,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "treatment_plan_service").Logger(),
	}
}

func (s *treatmentPlanService) Create(ctx context.Context, payload dto.TreatmentPlanCreateRequest) (dto.TreatmentPlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TreatmentPlanResponse{}, err
	}

	if _, err := s.risks.FindByID(ctx, payload.RiskID); err != nil {
		return dto.TreatmentPlanResponse{}, err
	}

	plan := models.RiskTreatmentPlan{
		RiskID:        payload.RiskID,
		Title:         strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Status:        models.TreatmentStatusPlanned,
		Measure:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Measure)),
		TargetDate:    payload.TargetDate,
		ResponsibleID: payload.ResponsibleID,
	}

	if err := s.risks.CreateTreatmentPlan(ctx, &plan); err != nil {
		return dto.TreatmentPlanResponse{}, err
	}

	return dto.NewTreatmentPlanResponse(plan), nil
}

func (s *treatmentPlanService) Update(ctx context.Context, id uint, payload dto.TreatmentPlanUpdateRequest) (dto.TreatmentPlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TreatmentPlanResponse{}, err
	}

	plan, err := s.risks.FindTreatmentPlanByID(ctx, id)
	if err != nil {
		return dto.TreatmentPlanResponse{}, err
	}

	if payload.Title != nil {
		plan.Title = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
	}
	if payload.Status != nil {
		plan.Status = *payload.Status
	}
	if payload.Measure != nil {
		plan.Measure = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Measure))
	}
	if payload.TargetDate != nil {
		plan.TargetDate = payload.TargetDate
	}
	if payload.ResponsibleID != nil {
		plan.ResponsibleID = payload.ResponsibleID
	}

	if err := s.risks.UpdateTreatmentPlan(ctx, plan); err != nil {
		return dto.TreatmentPlanResponse{}, err
	}

	return dto.NewTreatmentPlanResponse(*plan), nil
}

func (s *treatmentPlanService) Get(ctx context.Context, id uint) (dto.TreatmentPlanResponse, error) {
	plan, err := s.risks.FindTreatmentPlanByID(ctx, id)
	if err != nil {
		return dto.TreatmentPlanResponse{}, err
	}
	return dto.NewTreatmentPlanResponse(*plan), nil
}
