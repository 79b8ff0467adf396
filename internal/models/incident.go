package models

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/audit"
)

// Incident severities, ordered by escalation weight.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Incident is a security incident under ISMS governance. Creation and
// severity or breach-status changes feed the escalation workflows.
type Incident struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	IncidentNumber     string     `gorm:"size:32;uniqueIndex;not null" json:"incident_number"`
	Title              string     `gorm:"size:255;not null" json:"title"`
	Description        string     `gorm:"type:text" json:"description"`
	Severity           string     `gorm:"size:16;not null" json:"severity"`
	Status             string     `gorm:"size:32;not null;default:open" json:"status"`
	DataBreachOccurred bool       `gorm:"not null;default:false" json:"data_breach_occurred"`
	DetectedAt         *time.Time `json:"detected_at"`
	ReportedBy         *uint      `json:"reported_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// AuditKind implements audit.Recordable.
func (i *Incident) AuditKind() audit.Kind { return audit.KindIncident }

// AuditID implements audit.Recordable.
func (i *Incident) AuditID() uint { return i.ID }

// AuditSnapshot lists the audited fields of an incident.
func (i *Incident) AuditSnapshot() map[string]any {
	return map[string]any{
		"incident_number":      i.IncidentNumber,
		"title":                i.Title,
		"description":          i.Description,
		"severity":             i.Severity,
		"status":               i.Status,
		"data_breach_occurred": i.DataBreachOccurred,
		"detected_at":          i.DetectedAt,
		"reported_by":          i.ReportedBy,
		"updated_at":           i.UpdatedAt,
	}
}
