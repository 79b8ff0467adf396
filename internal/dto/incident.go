package dto

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// IncidentCreateRequest carries a new security incident report.
type IncidentCreateRequest struct {
	IncidentNumber     string     `json:"incident_number" validate:"required,max=64"`
	Title              string     `json:"title" validate:"required,max=255"`
	Description        string     `json:"description" validate:"omitempty,max=5000"`
	Severity           string     `json:"severity" validate:"required,oneof=low medium high critical"`
	DataBreachOccurred bool       `json:"data_breach_occurred"`
	DetectedAt         *time.Time `json:"detected_at"`
}

// IncidentUpdateRequest carries a partial incident update. Nil fields are
// left untouched.
type IncidentUpdateRequest struct {
	Title              *string    `json:"title" validate:"omitempty,max=255"`
	Description        *string    `json:"description" validate:"omitempty,max=5000"`
	Severity           *string    `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Status             *string    `json:"status" validate:"omitempty,oneof=open contained resolved closed"`
	DataBreachOccurred *bool      `json:"data_breach_occurred"`
	DetectedAt         *time.Time `json:"detected_at"`
}

// IncidentResponse is one incident as served to clients.
type IncidentResponse struct {
	ID                 uint       `json:"id"`
	IncidentNumber     string     `json:"incident_number"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Severity           string     `json:"severity"`
	Status             string     `json:"status"`
	DataBreachOccurred bool       `json:"data_breach_occurred"`
	DetectedAt         *time.Time `json:"detected_at"`
	ReportedBy         *uint      `json:"reported_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewIncidentResponse maps an incident to its response shape.
func NewIncidentResponse(incident models.Incident) IncidentResponse {
	return IncidentResponse{
		ID:                 incident.ID,
		IncidentNumber:     incident.IncidentNumber,
		Title:              incident.Title,
		Description:        incident.Description,
		Severity:           incident.Severity,
		Status:             incident.Status,
		DataBreachOccurred: incident.DataBreachOccurred,
		DetectedAt:         incident.DetectedAt,
		ReportedBy:         incident.ReportedBy,
		CreatedAt:          incident.CreatedAt,
		UpdatedAt:          incident.UpdatedAt,
	}
}
