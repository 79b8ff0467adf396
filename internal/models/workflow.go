package models

import (
	"time"

	"gorm.io/datatypes"
)

// Workflow instance statuses. approved, rejected and cancelled are terminal:
// no further transition is permitted out of them.
const (
	WorkflowStatusPending    = "pending"
	WorkflowStatusInProgress = "in_progress"
	WorkflowStatusApproved   = "approved"
	WorkflowStatusRejected   = "rejected"
	WorkflowStatusCancelled  = "cancelled"
)

// Workflow step types.
const (
	StepTypeApproval     = "approval"
	StepTypeNotification = "notification"
	StepTypeAutoAction   = "auto_action"
)

// WorkflowDefinition describes a static, per entity-kind approval process.
type WorkflowDefinition struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:128;not null;index" json:"name"`
	EntityType  string         `gorm:"size:64;not null;index" json:"entity_type"`
	Description string         `gorm:"size:500" json:"description,omitempty"`
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`
	Steps       []WorkflowStep `gorm:"foreignKey:WorkflowID" json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowStep is one ordered step of a workflow definition.
type WorkflowStep struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	WorkflowID      uint           `gorm:"not null;index" json:"workflow_id"`
	Position        int            `gorm:"not null" json:"position"`
	Name            string         `gorm:"size:128;not null" json:"name"`
	StepType        string         `gorm:"size:32;not null" json:"step_type"`
	ApproverRole    string         `gorm:"size:64" json:"approver_role,omitempty"`
	ApproverUserIDs datatypes.JSON `gorm:"type:json" json:"approver_user_ids,omitempty"`
	IsRequired      bool           `gorm:"not null;default:true" json:"is_required"`
	DaysToComplete  int            `json:"days_to_complete"`
}

// WorkflowInstance is one stateful approval process attached to a single
// entity mutation. Rows are owned by the workflow engine; other components
// only request creation or advancement.
type WorkflowInstance struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	WorkflowID      uint                `gorm:"not null;index" json:"workflow_id"`
	Workflow        *WorkflowDefinition `gorm:"foreignKey:WorkflowID" json:"workflow,omitempty"`
	EntityType      string              `gorm:"size:64;not null;index:idx_workflow_entity" json:"entity_type"`
	EntityID        uint                `gorm:"not null;index:idx_workflow_entity" json:"entity_id"`
	Status          string              `gorm:"size:32;not null;index" json:"status"`
	CurrentStepID   *uint               `json:"current_step_id"`
	InitiatedBy     *uint               `json:"initiated_by"`
	DueDate         *time.Time          `json:"due_date"`
	DeadlineFixed   bool                `gorm:"not null;default:false" json:"deadline_fixed"`
	ApprovalHistory datatypes.JSON      `gorm:"type:json" json:"approval_history,omitempty"`
	Comments        string              `gorm:"size:1000" json:"comments,omitempty"`
	StartedAt       time.Time           `gorm:"not null" json:"started_at"`
	CompletedAt     *time.Time          `json:"completed_at"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// IsTerminal reports whether the instance reached a final state.
func (w *WorkflowInstance) IsTerminal() bool {
	switch w.Status {
	case WorkflowStatusApproved, WorkflowStatusRejected, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// IsOverdue reports whether an active instance passed its due date.
func (w *WorkflowInstance) IsOverdue(now time.Time) bool {
	return !w.IsTerminal() && w.DueDate != nil && now.After(*w.DueDate)
}

// ApprovalHistoryEntry is one line of a workflow instance's decision trail.
type ApprovalHistoryEntry struct {
	StepID       uint   `json:"step_id"`
	StepName     string `json:"step_name"`
	Action       string `json:"action"`
	ApproverID   *uint  `json:"approver_id"`
	ApproverName string `json:"approver_name"`
	Comments     string `json:"comments,omitempty"`
	Timestamp    string `json:"timestamp"`
}
