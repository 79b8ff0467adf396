package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

// DocumentService manages governed documents. Creating a policy, procedure
// or guideline starts the document approval workflow via the lifecycle
// plugin.
type DocumentService interface {
	Create(ctx context.Context, payload dto.DocumentCreateRequest) (dto.DocumentResponse, error)
	Get(ctx context.Context, id uint) (dto.DocumentResponse, error)
}

type documentService struct {
	repo      repository.DocumentRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(repo repository.DocumentRepository, validate *validator.Validate, logger zerolog.Logger) DocumentService {
	return &documentService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "document_service").Logger(),
	}
}

func (s *documentService) Create(ctx context.Context, payload dto.DocumentCreateRequest) (dto.DocumentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	version := strings.TrimSpace(payload.Version)
	if version == "" {
		version = "1.0"
	}

	document := models.Document{
		Title:    strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Category: payload.Category,
		Version:  version,
		Status:   "draft",
		OwnerID:  audit.ActorFromContext(ctx).ID,
	}

	if err := s.repo.Create(ctx, &document); err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(document), nil
}

func (s *documentService) Get(ctx context.Context, id uint) (dto.DocumentResponse, error) {
	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	return dto.NewDocumentResponse(*document), nil
}
