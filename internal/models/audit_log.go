package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLogEntry is one append-only record of who changed what, when, and
// from/to which values. Rows are owned by the audit subsystem exclusively and
// are never updated once written.
type AuditLogEntry struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	EntityType    string            `gorm:"size:64;not null;index" json:"entity_type"`
	EntityID      *uint             `gorm:"index" json:"entity_id"`
	Action        string            `gorm:"size:16;not null;index" json:"action"`
	ActorID       *uint             `json:"actor_id"`
	OldValues     datatypes.JSONMap `gorm:"type:json" json:"old_values,omitempty"`
	NewValues     datatypes.JSONMap `gorm:"type:json" json:"new_values,omitempty"`
	ChangedFields datatypes.JSON    `gorm:"type:json" json:"changed_fields,omitempty"`
	ClientIP      string            `gorm:"size:64" json:"client_ip,omitempty"`
	UserAgent     string            `gorm:"size:255" json:"user_agent,omitempty"`
	OccurredAt    time.Time         `gorm:"not null;index" json:"occurred_at"`
	CreatedAt     time.Time         `json:"created_at"`
}
