package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// WorkflowInstanceQuery carries the supported workflow instance filters.
type WorkflowInstanceQuery struct {
	Page       int    `query:"page"`
	PageSize   int    `query:"page_size" validate:"omitempty,max=200"`
	EntityType string `query:"entity_type" validate:"omitempty,max=64"`
	EntityID   *uint  `query:"entity_id"`
	Status     string `query:"status" validate:"omitempty,oneof=pending in_progress approved rejected cancelled"`
}

// WorkflowDecisionRequest carries one approve or reject decision.
type WorkflowDecisionRequest struct {
	Comments string `json:"comments" validate:"omitempty,max=1000"`
}

// WorkflowCancelRequest carries the cancellation reason.
type WorkflowCancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

// WorkflowStepResponse is one definition step as served to clients.
type WorkflowStepResponse struct {
	ID             uint   `json:"id"`
	Position       int    `json:"position"`
	Name           string `json:"name"`
	StepType       string `json:"step_type"`
	ApproverRole   string `json:"approver_role,omitempty"`
	IsRequired     bool   `json:"is_required"`
	DaysToComplete int    `json:"days_to_complete"`
}

// WorkflowInstanceResponse is one workflow instance as served to clients.
type WorkflowInstanceResponse struct {
	ID              uint                          `json:"id"`
	WorkflowID      uint                          `json:"workflow_id"`
	WorkflowName    string                        `json:"workflow_name,omitempty"`
	EntityType      string                        `json:"entity_type"`
	EntityID        uint                          `json:"entity_id"`
	Status          string                        `json:"status"`
	CurrentStep     *WorkflowStepResponse         `json:"current_step,omitempty"`
	InitiatedBy     *uint                         `json:"initiated_by"`
	DueDate         *time.Time                    `json:"due_date"`
	Overdue         bool                          `json:"overdue"`
	ApprovalHistory []models.ApprovalHistoryEntry `json:"approval_history,omitempty"`
	Comments        string                        `json:"comments,omitempty"`
	StartedAt       time.Time                     `json:"started_at"`
	CompletedAt     *time.Time                    `json:"completed_at"`
}

// NewWorkflowInstanceResponse maps a workflow instance to its response shape.
func NewWorkflowInstanceResponse(instance models.WorkflowInstance, now time.Time) WorkflowInstanceResponse {
	response := WorkflowInstanceResponse{
		ID:          instance.ID,
		WorkflowID:  instance.WorkflowID,
		EntityType:  instance.EntityType,
		EntityID:    instance.EntityID,
		Status:      instance.Status,
		InitiatedBy: instance.InitiatedBy,
		DueDate:     instance.DueDate,
		Overdue:     instance.IsOverdue(now),
		Comments:    instance.Comments,
		StartedAt:   instance.StartedAt,
		CompletedAt: instance.CompletedAt,
	}

	if instance.Workflow != nil {
		response.WorkflowName = instance.Workflow.Name
		if instance.CurrentStepID != nil {
			for _, step := range instance.Workflow.Steps {
				if step.ID == *instance.CurrentStepID {
					response.CurrentStep = &WorkflowStepResponse{
						ID:             step.ID,
						Position:       step.Position,
						Name:           step.Name,
						StepType:       step.StepType,
						ApproverRole:   step.ApproverRole,
						IsRequired:     step.IsRequired,
						DaysToComplete: step.DaysToComplete,
					}
					break
				}
			}
		}
	}

	if len(instance.ApprovalHistory) > 0 {
		var history []models.ApprovalHistoryEntry
		if err := json.Unmarshal(instance.ApprovalHistory, &history); err == nil {
			response.ApprovalHistory = history
		}
	}

	return response
}

// NewWorkflowInstanceResponseSlice maps workflow instances to response shapes.
func NewWorkflowInstanceResponseSlice(instances []models.WorkflowInstance, now time.Time) []WorkflowInstanceResponse {
	responses := make([]WorkflowInstanceResponse, 0, len(instances))
	for _, instance := range instances {
		responses = append(responses, NewWorkflowInstanceResponse(instance, now))
	}
	return responses
}
