package models

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/audit"
)

// Control is a security control implemented against one or more risks.
type Control struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Name                 string    `gorm:"size:255;not null" json:"name"`
	ControlType          string    `gorm:"size:64" json:"control_type"`
	ImplementationStatus string    `gorm:"size:32" json:"implementation_status"`
	OwnerID              *uint     `json:"owner_id"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// AuditKind implements audit.Recordable.
func (c *Control) AuditKind() audit.Kind { return audit.KindControl }

// AuditID implements audit.Recordable.
func (c *Control) AuditID() uint { return c.ID }

// AuditSnapshot lists the audited fields of a control.
func (c *Control) AuditSnapshot() map[string]any {
	return map[string]any{
		"name":                  c.Name,
		"control_type":          c.ControlType,
		"implementation_status": c.ImplementationStatus,
		"owner_id":              c.OwnerID,
		"updated_at":            c.UpdatedAt,
	}
}
