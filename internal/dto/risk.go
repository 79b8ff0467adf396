package dto

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// TreatmentPlanCreateRequest carries a new risk treatment plan.
type TreatmentPlanCreateRequest struct {
	RiskID        uint       `json:"risk_id" validate:"required"`
	Title         string     `json:"title" validate:"required,max=255"`
	Measure       string     `json:"measure" validate:"omitempty,max=5000"`
	TargetDate    *time.Time `json:"target_date"`
	ResponsibleID *uint      `json:"responsible_id"`
}

// TreatmentPlanUpdateRequest carries a partial treatment plan update.
type TreatmentPlanUpdateRequest struct {
	Title         *string    `json:"title" validate:"omitempty,max=255"`
	Status        *string    `json:"status" validate:"omitempty,oneof=planned in_progress completed"`
	Measure       *string    `json:"measure" validate:"omitempty,max=5000"`
	TargetDate    *time.Time `json:"target_date"`
	ResponsibleID *uint      `json:"responsible_id"`
}

// TreatmentPlanResponse is one treatment plan as served to clients.
type TreatmentPlanResponse struct {
	ID            uint       `json:"id"`
	RiskID        uint       `json:"risk_id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Measure       string     `json:"measure,omitempty"`
	TargetDate    *time.Time `json:"target_date"`
	ResponsibleID *uint      `json:"responsible_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewTreatmentPlanResponse maps a treatment plan to its response shape.
func NewTreatmentPlanResponse(plan models.RiskTreatmentPlan) TreatmentPlanResponse {
	return TreatmentPlanResponse{
		ID:            plan.ID,
		RiskID:        plan.RiskID,
		Title:         plan.Title,
		Status:        plan.Status,
		Measure:       plan.Measure,
		TargetDate:    plan.TargetDate,
		ResponsibleID: plan.ResponsibleID,
		CreatedAt:     plan.CreatedAt,
		UpdatedAt:     plan.UpdatedAt,
	}
}
