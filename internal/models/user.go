package models

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/audit"
)

// Workflow approver roles.
const (
	RoleCISO            = "ciso"
	RoleDPO             = "dpo"
	RoleCEO             = "ceo"
	RoleIncidentManager = "incident_manager"
	RoleRiskManager     = "risk_manager"
	RoleManager         = "manager"
)

// User is an ISMS platform account. Passwords never reach the audit trail
// and last_login_at churn is excluded from diffs.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	Role         string     `gorm:"size:64;not null;index" json:"role"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AuditKind implements audit.Recordable.
func (u *User) AuditKind() audit.Kind { return audit.KindUser }

// AuditID implements audit.Recordable.
func (u *User) AuditID() uint { return u.ID }

// AuditSnapshot lists the audited fields of a user account. The password
// hash is masked by the normalizer even though it is listed here, so a
// credential change is visible without leaking material.
func (u *User) AuditSnapshot() map[string]any {
	return map[string]any{
		"email":         u.Email,
		"full_name":     u.FullName,
		"role":          u.Role,
		"password_hash": u.PasswordHash,
		"last_login_at": u.LastLoginAt,
		"updated_at":    u.UpdatedAt,
	}
}
