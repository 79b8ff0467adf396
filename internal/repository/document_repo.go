package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// DocumentRepository manages governed documents.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	Update(ctx context.Context, document *models.Document) error
	FindByID(ctx context.Context, id uint) (*models.Document, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository constructs the document repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *documentRepository) Update(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Save(document).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id uint) (*models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).First(&document, id).Error; err != nil {
		return nil, err
	}
	return &document, nil
}
