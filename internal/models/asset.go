package models

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/audit"
)

// Asset is an inventoried information asset.
type Asset struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	AssetType   string    `gorm:"size:64" json:"asset_type"`
	Criticality string    `gorm:"size:16" json:"criticality"`
	OwnerID     *uint     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuditKind implements audit.Recordable.
func (a *Asset) AuditKind() audit.Kind { return audit.KindAsset }

// AuditID implements audit.Recordable.
func (a *Asset) AuditID() uint { return a.ID }

// AuditSnapshot lists the audited fields of an asset.
func (a *Asset) AuditSnapshot() map[string]any {
	return map[string]any{
		"name":        a.Name,
		"asset_type":  a.AssetType,
		"criticality": a.Criticality,
		"owner_id":    a.OwnerID,
		"updated_at":  a.UpdatedAt,
	}
}
