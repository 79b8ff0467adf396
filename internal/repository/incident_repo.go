package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// IncidentRepository manages security incidents. Mutations run through the
// lifecycle plugin registered on the shared *gorm.DB, which is what produces
// the audit trail and workflow triggers.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	Update(ctx context.Context, incident *models.Incident) error
	// Delete takes the loaded model so the lifecycle plugin can snapshot the
	// row before removal.
	Delete(ctx context.Context, incident *models.Incident) error
	FindByID(ctx context.Context, id uint) (*models.Incident, error)
	ListOpenBreaches(ctx context.Context) ([]models.Incident, error)
}

type incidentRepository struct {
	db *gorm.DB
}

// NewIncidentRepository constructs the incident repository.
func NewIncidentRepository(db *gorm.DB) IncidentRepository {
	return &incidentRepository{db: db}
}

func (r *incidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	return r.db.WithContext(ctx).Create(incident).Error
}

func (r *incidentRepository) Update(ctx context.Context, incident *models.Incident) error {
	return r.db.WithContext(ctx).Save(incident).Error
}

func (r *incidentRepository) Delete(ctx context.Context, incident *models.Incident) error {
	return r.db.WithContext(ctx).Delete(incident).Error
}

func (r *incidentRepository) FindByID(ctx context.Context, id uint) (*models.Incident, error) {
	var incident models.Incident
	if err := r.db.WithContext(ctx).First(&incident, id).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *incidentRepository) ListOpenBreaches(ctx context.Context) ([]models.Incident, error) {
	var incidents []models.Incident
	err := r.db.WithContext(ctx).
		Where("data_breach_occurred = ? AND status <> ?", true, "closed").
		Find(&incidents).Error
	return incidents, err
}
