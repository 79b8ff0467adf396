package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// AuditLogQuery carries the supported audit trail filters.
type AuditLogQuery struct {
	Page       int        `query:"page"`
	PageSize   int        `query:"page_size" validate:"omitempty,max=200"`
	EntityType string     `query:"entity_type" validate:"omitempty,max=64"`
	EntityID   *uint      `query:"entity_id"`
	ActorID    *uint      `query:"actor_id"`
	Action     string     `query:"action" validate:"omitempty,oneof=created updated deleted"`
	Since      *time.Time `query:"since"`
}

// AuditLogResponse is one audit trail entry as served to clients.
type AuditLogResponse struct {
	ID            uint           `json:"id"`
	EntityType    string         `json:"entity_type"`
	EntityID      *uint          `json:"entity_id"`
	Action        string         `json:"action"`
	ActorID       *uint          `json:"actor_id"`
	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
	ChangedFields []string       `json:"changed_fields,omitempty"`
	ClientIP      string         `json:"client_ip,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// NewAuditLogResponse maps a stored entry to its response shape.
func NewAuditLogResponse(entry models.AuditLogEntry) AuditLogResponse {
	response := AuditLogResponse{
		ID:         entry.ID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		ActorID:    entry.ActorID,
		OldValues:  entry.OldValues,
		NewValues:  entry.NewValues,
		ClientIP:   entry.ClientIP,
		UserAgent:  entry.UserAgent,
		OccurredAt: entry.OccurredAt,
	}

	if len(entry.ChangedFields) > 0 {
		var fields []string
		if err := json.Unmarshal(entry.ChangedFields, &fields); err == nil {
			response.ChangedFields = fields
		}
	}

	return response
}

// NewAuditLogResponseSlice maps stored entries to their response shapes.
func NewAuditLogResponseSlice(entries []models.AuditLogEntry) []AuditLogResponse {
	responses := make([]AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewAuditLogResponse(entry))
	}
	return responses
}
