package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// RiskRepository manages risk register entries and treatment plans.
type RiskRepository interface {
	Create(ctx context.Context, risk *models.Risk) error
	Update(ctx context.Context, risk *models.Risk) error
	FindByID(ctx context.Context, id uint) (*models.Risk, error)
	// ListDueForReview returns risks whose review date falls at or before the
	// threshold. The result set shrinks as reviews are completed, which is
	// what keeps the scheduled reminder handler idempotent at due-item level.
	ListDueForReview(ctx context.Context, threshold time.Time, limit int) ([]models.Risk, error)

	CreateTreatmentPlan(ctx context.Context, plan *models.RiskTreatmentPlan) error
	UpdateTreatmentPlan(ctx context.Context, plan *models.RiskTreatmentPlan) error
	FindTreatmentPlanByID(ctx context.Context, id uint) (*models.RiskTreatmentPlan, error)
}

type riskRepository struct {
	db *gorm.DB
}

// NewRiskRepository constructs the risk repository.
func NewRiskRepository(db *gorm.DB) RiskRepository {
	return &riskRepository{db: db}
}

func (r *riskRepository) Create(ctx context.Context, risk *models.Risk) error {
	return r.db.WithContext(ctx).Create(risk).Error
}

func (r *riskRepository) Update(ctx context.Context, risk *models.Risk) error {
	return r.db.WithContext(ctx).Save(risk).Error
}

func (r *riskRepository) FindByID(ctx context.Context, id uint) (*models.Risk, error) {
	var risk models.Risk
	if err := r.db.WithContext(ctx).First(&risk, id).Error; err != nil {
		return nil, err
	}
	return &risk, nil
}

func (r *riskRepository) ListDueForReview(ctx context.Context, threshold time.Time, limit int) ([]models.Risk, error) {
	if limit <= 0 {
		limit = 100
	}

	var risks []models.Risk
	err := r.db.WithContext(ctx).
		Where("review_date IS NOT NULL AND review_date <= ?", threshold).
		Order("review_date ASC").
		Limit(limit).
		Find(&risks).Error
	return risks, err
}

func (r *riskRepository) CreateTreatmentPlan(ctx context.Context, plan *models.RiskTreatmentPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *riskRepository) UpdateTreatmentPlan(ctx context.Context, plan *models.RiskTreatmentPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *riskRepository) FindTreatmentPlanByID(ctx context.Context, id uint) (*models.RiskTreatmentPlan, error) {
	var plan models.RiskTreatmentPlan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}
