package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/observability"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

// NewAuditSink adapts the audit log repository into the capture pipeline's
// sink. Every accepted entry increments the per-kind counter.
func NewAuditSink(repo repository.AuditLogRepository) audit.Sink {
	return audit.SinkFunc(func(ctx context.Context, entry audit.Entry) error {
		record := models.AuditLogEntry{
			EntityType: string(entry.Kind),
			Action:     string(entry.Action),
			ActorID:    entry.Actor.ID,
			OldValues:  datatypes.JSONMap(entry.OldValues),
			NewValues:  datatypes.JSONMap(entry.NewValues),
			ClientIP:   entry.Actor.ClientIP,
			UserAgent:  entry.Actor.UserAgent,
			OccurredAt: entry.OccurredAt,
		}

		if entry.EntityID != 0 {
			entityID := entry.EntityID
			record.EntityID = &entityID
		}

		if len(entry.ChangedFields) > 0 {
			encoded, err := json.Marshal(entry.ChangedFields)
			if err == nil {
				record.ChangedFields = encoded
			}
		}

		if err := repo.Create(ctx, &record); err != nil {
			return err
		}

		observability.AuditEntries().WithLabelValues(string(entry.Kind), string(entry.Action)).Inc()
		return nil
	})
}

// AuditQueryService serves read access to the audit trail.
type AuditQueryService interface {
	List(ctx context.Context, query dto.AuditLogQuery) ([]dto.AuditLogResponse, dto.PaginationMeta, error)
}

type auditQueryService struct {
	repo      repository.AuditLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewAuditQueryService constructs the audit trail query service.
func NewAuditQueryService(repo repository.AuditLogRepository, validate *validator.Validate, logger zerolog.Logger) AuditQueryService {
	return &auditQueryService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "audit_query_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/isms-go-api/internal/service/audit"),
	}
}

func (s *auditQueryService) List(ctx context.Context, query dto.AuditLogQuery) ([]dto.AuditLogResponse, dto.PaginationMeta, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = 50
	}

	spanCtx, span := s.tracer.Start(ctx, "audit.list")
	defer span.End()

	entries, total, err := s.repo.List(spanCtx, repository.AuditLogFilter{
		Page:       query.Page,
		PageSize:   query.PageSize,
		ActorID:    query.ActorID,
		Action:     query.Action,
		EntityType: query.EntityType,
		EntityID:   query.EntityID,
		Since:      query.Since,
	})
	if err != nil {
		span.RecordError(err)
		return nil, dto.PaginationMeta{}, err
	}

	return dto.NewAuditLogResponseSlice(entries), dto.NewPaginationMeta(query.Page, query.PageSize, total), nil
}
