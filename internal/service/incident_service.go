package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

// IncidentService manages the incident register. Mutations run through the
// instrumented DB handle, so every call here leaves an audit record and may
// start escalation workflows as a side effect.
type IncidentService interface {
	Create(ctx context.Context, payload dto.IncidentCreateRequest) (dto.IncidentResponse, error)
	Update(ctx context.Context, id uint, payload dto.IncidentUpdateRequest) (dto.IncidentResponse, error)
	Get(ctx context.Context, id uint) (dto.IncidentResponse, error)
	Delete(ctx context.Context, id uint) error
}

type incidentService struct {
	repo      repository.IncidentRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewIncidentService constructs the incident service.
func NewIncidentService(repo repository.IncidentRepository, validate *validator.Validate, logger zerolog.Logger) IncidentService {
	return &incidentService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "incident_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/isms-go-api/internal/service/incident"),
	}
}

func (s *incidentService) Create(ctx context.Context, payload dto.IncidentCreateRequest) (dto.IncidentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.IncidentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "incidents.create", trace.WithAttributes(
		attribute.String("incident.severity", payload.Severity),
		attribute.Bool("incident.data_breach", payload.DataBreachOccurred),
	))
	defer span.End()

	incident := models.Incident{
		IncidentNumber:     strings.TrimSpace(payload.IncidentNumber),
		Title:              strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Description:        strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Severity:           payload.Severity,
		Status:             "open",
		DataBreachOccurred: payload.DataBreachOccurred,
		DetectedAt:         payload.DetectedAt,
		ReportedBy:         audit.ActorFromContext(ctx).ID,
	}

	if err := s.repo.Create(spanCtx, &incident); err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, err
	}

	return dto.NewIncidentResponse(incident), nil
}

func (s *incidentService) Update(ctx context.Context, id uint, payload dto.IncidentUpdateRequest) (dto.IncidentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.IncidentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "incidents.update", trace.WithAttributes(
		attribute.Int64("incident.id", int64(id)),
	))
	defer span.End()

	incident, err := s.repo.FindByID(spanCtx, id)
	if err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, err
	}

	if payload.Title != nil {
		incident.Title = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
	}
	if payload.Description != nil {
		incident.Description = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
	}
	if payload.Severity != nil {
		incident.Severity = *payload.Severity
	}
	if payload.Status != nil {
		incident.Status = *payload.Status
	}
	if payload.DataBreachOccurred != nil {
		incident.DataBreachOccurred = *payload.DataBreachOccurred
	}
	if payload.DetectedAt != nil {
		incident.DetectedAt = payload.DetectedAt
	}

	if err := s.repo.Update(spanCtx, incident); err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, err
	}

	return dto.NewIncidentResponse(*incident), nil
}

func (s *incidentService) Get(ctx context.Context, id uint) (dto.IncidentResponse, error) {
	incident, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.IncidentResponse{}, err
	}
	return dto.NewIncidentResponse(*incident), nil
}

func (s *incidentService) Delete(ctx context.Context, id uint) error {
	incident, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, incident)
}
