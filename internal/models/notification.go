package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification template kinds emitted by the workflow and scheduler paths.
const (
	TemplateWorkflowAssigned  = "workflow_assigned"
	TemplateWorkflowStep      = "workflow_step"
	TemplateBreachDeadline    = "breach_deadline"
	TemplateReviewReminder    = "review_reminder"
	TemplateComplianceReport  = "compliance_report"
	TemplateIncidentEscalated = "incident_escalated"
)

// Notification is one message queued for a recipient. Delivery failures never
// propagate into the mutation that produced the notification.
type Notification struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	RecipientID  uint              `gorm:"not null;index" json:"recipient_id"`
	TemplateKind string            `gorm:"size:64;not null" json:"template_kind"`
	Message      string            `gorm:"size:1000;not null" json:"message"`
	Payload      datatypes.JSONMap `gorm:"type:json" json:"payload,omitempty"`
	ReadAt       *time.Time        `json:"read_at"`
	CreatedAt    time.Time         `json:"created_at"`
}
