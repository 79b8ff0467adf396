package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// ScheduledReportRepository manages recurring compliance report definitions.
type ScheduledReportRepository interface {
	ListActive(ctx context.Context) ([]models.ScheduledReport, error)
	FindByID(ctx context.Context, id uint) (*models.ScheduledReport, error)
	Save(ctx context.Context, report *models.ScheduledReport) error
}

type scheduledReportRepository struct {
	db *gorm.DB
}

// NewScheduledReportRepository constructs the scheduled report repository.
func NewScheduledReportRepository(db *gorm.DB) ScheduledReportRepository {
	return &scheduledReportRepository{db: db}
}

func (r *scheduledReportRepository) ListActive(ctx context.Context) ([]models.ScheduledReport, error) {
	var reports []models.ScheduledReport
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&reports).Error
	return reports, err
}

func (r *scheduledReportRepository) FindByID(ctx context.Context, id uint) (*models.ScheduledReport, error) {
	var report models.ScheduledReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *scheduledReportRepository) Save(ctx context.Context, report *models.ScheduledReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}
