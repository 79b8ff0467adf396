package models

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/audit"
)

// Document categories that require a formal approval workflow.
const (
	DocumentCategoryPolicy    = "policy"
	DocumentCategoryProcedure = "procedure"
	DocumentCategoryGuideline = "guideline"
	DocumentCategoryRecord    = "record"
)

// Document is a governed ISMS document. Policies, procedures and guidelines
// pass through an approval workflow on creation.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Category  string    `gorm:"size:32;not null;index" json:"category"`
	Version   string    `gorm:"size:16" json:"version"`
	Status    string    `gorm:"size:32;not null;default:draft" json:"status"`
	OwnerID   *uint     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequiresApproval reports whether the document category is subject to the
// approval workflow.
func (d *Document) RequiresApproval() bool {
	switch d.Category {
	case DocumentCategoryPolicy, DocumentCategoryProcedure, DocumentCategoryGuideline:
		return true
	default:
		return false
	}
}

// AuditKind implements audit.Recordable.
func (d *Document) AuditKind() audit.Kind { return audit.KindDocument }

// AuditID implements audit.Recordable.
func (d *Document) AuditID() uint { return d.ID }

// AuditSnapshot lists the audited fields of a document.
func (d *Document) AuditSnapshot() map[string]any {
	return map[string]any{
		"title":      d.Title,
		"category":   d.Category,
		"version":    d.Version,
		"status":     d.Status,
		"owner_id":   d.OwnerID,
		"updated_at": d.UpdatedAt,
	}
}
