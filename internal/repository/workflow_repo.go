package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/database"
	"github.com/noah-isme/isms-go-api/internal/models"
)

// WorkflowInstanceFilter narrows workflow instance queries.
type WorkflowInstanceFilter struct {
	Page       int
	PageSize   int
	Status     string
	EntityType string
	EntityID   *uint
}

// WorkflowRepository stores workflow definitions and instances.
type WorkflowRepository interface {
	CreateDefinition(ctx context.Context, definition *models.WorkflowDefinition) error
	FindDefinition(ctx context.Context, entityType, name string) (*models.WorkflowDefinition, error)
	CountDefinitions(ctx context.Context) (int64, error)

	CreateInstance(ctx context.Context, instance *models.WorkflowInstance) error
	SaveInstance(ctx context.Context, instance *models.WorkflowInstance) error
	FindInstanceByID(ctx context.Context, id uint) (*models.WorkflowInstance, error)
	FindActiveInstance(ctx context.Context, entityType string, entityID uint, workflowID uint) (*models.WorkflowInstance, error)
	ListInstances(ctx context.Context, filter WorkflowInstanceFilter) ([]models.WorkflowInstance, int64, error)
	ListInProgress(ctx context.Context) ([]models.WorkflowInstance, error)
}

type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository constructs the workflow repository.
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

// conn prefers the transaction handle carried by the context. Instances
// created while a trigger evaluates inside an open business transaction
// commit and roll back with it.
func (r *workflowRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *workflowRepository) CreateDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	return r.conn(ctx).Create(definition).Error
}

func (r *workflowRepository) FindDefinition(ctx context.Context, entityType, name string) (*models.WorkflowDefinition, error) {
	query := r.conn(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("entity_type = ? AND is_active = ?", entityType, true)

	if name != "" {
		query = query.Where("name = ?", name)
	}

	var definition models.WorkflowDefinition
	if err := query.First(&definition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &definition, nil
}

func (r *workflowRepository) CountDefinitions(ctx context.Context) (int64, error) {
	var total int64
	err := r.conn(ctx).Model(&models.WorkflowDefinition{}).Count(&total).Error
	return total, err
}

func (r *workflowRepository) CreateInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	return r.conn(ctx).Create(instance).Error
}

func (r *workflowRepository) SaveInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	return r.conn(ctx).Save(instance).Error
}

func (r *workflowRepository) FindInstanceByID(ctx context.Context, id uint) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	err := r.conn(ctx).
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&instance, id).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *workflowRepository) FindActiveInstance(ctx context.Context, entityType string, entityID uint, workflowID uint) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	err := r.conn(ctx).
		Where("entity_type = ? AND entity_id = ? AND workflow_id = ?", entityType, entityID, workflowID).
		Where("status IN ?", []string{models.WorkflowStatusPending, models.WorkflowStatusInProgress}).
		First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instance, nil
}

func (r *workflowRepository) ListInstances(ctx context.Context, filter WorkflowInstanceFilter) ([]models.WorkflowInstance, int64, error) {
	query := r.conn(ctx).Model(&models.WorkflowInstance{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}

	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var instances []models.WorkflowInstance
	err := query.
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("started_at DESC").
		Find(&instances).Error
	if err != nil {
		return nil, 0, err
	}

	return instances, total, nil
}

func (r *workflowRepository) ListInProgress(ctx context.Context) ([]models.WorkflowInstance, error) {
	var instances []models.WorkflowInstance
	err := r.conn(ctx).
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("status = ?", models.WorkflowStatusInProgress).
		Find(&instances).Error
	return instances, err
}
