package models

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/audit"
)

// Risk is an ISMS risk register entry. Risks carry a review date consumed by
// the scheduled review-reminder task.
type Risk struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Description       string     `gorm:"type:text" json:"description"`
	RiskScore         int        `gorm:"not null;default:0" json:"risk_score"`
	TreatmentStrategy string     `gorm:"size:32" json:"treatment_strategy"`
	OwnerID           *uint      `json:"owner_id"`
	ReviewDate        *time.Time `gorm:"index" json:"review_date"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AuditKind implements audit.Recordable.
func (r *Risk) AuditKind() audit.Kind { return audit.KindRisk }

// AuditID implements audit.Recordable.
func (r *Risk) AuditID() uint { return r.ID }

// AuditSnapshot lists the audited fields of a risk.
func (r *Risk) AuditSnapshot() map[string]any {
	return map[string]any{
		"title":              r.Title,
		"description":        r.Description,
		"risk_score":         r.RiskScore,
		"treatment_strategy": r.TreatmentStrategy,
		"owner_id":           r.OwnerID,
		"review_date":        r.ReviewDate,
		"updated_at":         r.UpdatedAt,
	}
}

// Risk treatment plan statuses.
const (
	TreatmentStatusPlanned    = "planned"
	TreatmentStatusInProgress = "in_progress"
	TreatmentStatusCompleted  = "completed"
)

// RiskTreatmentPlan describes how a risk will be treated. New plans in
// "planned" status require approval before implementation starts.
type RiskTreatmentPlan struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	RiskID        uint       `gorm:"not null;index" json:"risk_id"`
	Risk          *Risk      `gorm:"foreignKey:RiskID" json:"risk,omitempty"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Status        string     `gorm:"size:32;not null;default:planned" json:"status"`
	Measure       string     `gorm:"type:text" json:"measure"`
	TargetDate    *time.Time `json:"target_date"`
	ResponsibleID *uint      `json:"responsible_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AuditKind implements audit.Recordable.
func (p *RiskTreatmentPlan) AuditKind() audit.Kind { return audit.KindRiskTreatmentPlan }

// AuditID implements audit.Recordable.
func (p *RiskTreatmentPlan) AuditID() uint { return p.ID }

// AuditSnapshot lists the audited fields of a treatment plan.
func (p *RiskTreatmentPlan) AuditSnapshot() map[string]any {
	return map[string]any{
		"risk_id":        p.RiskID,
		"title":          p.Title,
		"status":         p.Status,
		"measure":        p.Measure,
		"target_date":    p.TargetDate,
		"responsible_id": p.ResponsibleID,
		"updated_at":     p.UpdatedAt,
	}
}
