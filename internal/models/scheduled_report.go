package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScheduledReport is a recurring compliance report definition executed by the
// scheduled task dispatcher. Reports must be activated before they run.
type ScheduledReport struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"size:128;not null" json:"name"`
	Kind      string            `gorm:"size:64;not null" json:"kind"`
	IsActive  bool              `gorm:"not null;default:false" json:"is_active"`
	Criteria  datatypes.JSONMap `gorm:"type:json" json:"criteria,omitempty"`
	LastRunAt *time.Time        `json:"last_run_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
