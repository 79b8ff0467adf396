package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/observability"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

// ErrInvalidTransition is returned when a terminal workflow instance is asked
// to advance or cancel. Terminal outcomes are immutable; a caller hitting
// this has a programming or data error upstream.
var ErrInvalidTransition = errors.New("workflow instance is in a terminal state")

// ErrNotAuthorized is returned when the acting user is neither in the step's
// approver role nor in its approver user list.
var ErrNotAuthorized = errors.New("user may not act on this workflow step")

// Notifier delivers workflow notifications to recipients. Implementations
// absorb delivery failures internally or return them for warn-level logging;
// they never reach the triggering mutation.
type Notifier interface {
	Notify(ctx context.Context, recipient models.User, templateKind string, payload map[string]any) error
}

// Engine owns the workflow instance state machine: creation, step
// advancement, deadline computation and terminal states.
type Engine struct {
	workflows repository.WorkflowRepository
	users     repository.UserRepository
	notifier  Notifier
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewEngine constructs the workflow instance engine.
func NewEngine(workflows repository.WorkflowRepository, users repository.UserRepository, notifier Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		workflows: workflows,
		users:     users,
		notifier:  notifier,
		logger:    logger.With().Str("component", "workflow_engine").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/isms-go-api/internal/workflow"),
		now:       time.Now,
	}
}

type startOptions struct {
	initiatedBy *uint
	deadline    *time.Time
}

// StartOption customises workflow instance creation.
type StartOption func(*startOptions)

// WithInitiator records the user who caused the workflow to start.
func WithInitiator(userID uint) StartOption {
	return func(o *startOptions) { o.initiatedBy = &userID }
}

// WithFixedDeadline pins the instance due date to an externally mandated
// deadline. The deadline is stored once at start time and never recomputed on
// step advancement.
func WithFixedDeadline(deadline time.Time) StartOption {
	return func(o *startOptions) { o.deadline = &deadline }
}

// Start creates a workflow instance for the entity in pending state and
// activates its first step. Starting is idempotent per entity and
// definition: an existing pending or in-progress instance is returned
// instead of creating a duplicate. A nil instance with nil error means no
// active definition exists for the entity kind.
func (e *Engine) Start(ctx context.Context, entityType string, entityID uint, workflowName string, opts ...StartOption) (*models.WorkflowInstance, error) {
	options := startOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	spanCtx, span := e.tracer.Start(ctx, "workflow.start", trace.WithAttributes(
		attribute.String("workflow.entity_type", entityType),
		attribute.String("workflow.name", workflowName),
	))
	defer span.End()

	definition, err := e.workflows.FindDefinition(spanCtx, entityType, workflowName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load workflow definition: %w", err)
	}
	if definition == nil {
		return nil, nil
	}

	existing, err := e.workflows.FindActiveInstance(spanCtx, entityType, entityID, definition.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check active instances: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	startedAt := e.now().UTC()
	instance := &models.WorkflowInstance{
		WorkflowID:  definition.ID,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      models.WorkflowStatusPending,
		InitiatedBy: options.initiatedBy,
		StartedAt:   startedAt,
	}

	if options.deadline != nil {
		deadline := options.deadline.UTC()
		instance.DueDate = &deadline
		instance.DeadlineFixed = true
	}

	if err := e.workflows.CreateInstance(spanCtx, instance); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist workflow instance: %w", err)
	}

	// Step activation notifies approvers with the instance identity, so the
	// row is persisted before the first step runs.
	if len(definition.Steps) > 0 {
		e.activateStep(spanCtx, instance, definition, 0)
		if err := e.workflows.SaveInstance(spanCtx, instance); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to persist workflow instance: %w", err)
		}
	}

	observability.WorkflowInstancesStarted().WithLabelValues(entityType, workflowName).Inc()
	e.logger.Info().
		Str("entity_type", entityType).
		Uint("entity_id", entityID).
		Str("workflow", workflowName).
		Uint("instance_id", instance.ID).
		Msg("workflow instance started")

	return instance, nil
}

// StepResult carries one approver decision into Advance.
type StepResult struct {
	ApproverID uint
	Approved   bool
	Comments   string
}

// Advance applies an approver decision to the instance's current step.
// A rejection on a required step terminates the instance as rejected;
// completing the last step terminates it as approved; otherwise the next
// step becomes current and the due date is recomputed for its activation.
func (e *Engine) Advance(ctx context.Context, instanceID uint, result StepResult) (*models.WorkflowInstance, error) {
	spanCtx, span := e.tracer.Start(ctx, "workflow.advance", trace.WithAttributes(
		attribute.Int64("workflow.instance_id", int64(instanceID)),
	))
	defer span.End()

	instance, err := e.workflows.FindInstanceByID(spanCtx, instanceID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load workflow instance: %w", err)
	}

	if instance.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	definition := instance.Workflow
	if definition == nil || len(definition.Steps) == 0 || instance.CurrentStepID == nil {
		return nil, fmt.Errorf("workflow instance %d has no actionable step", instanceID)
	}

	stepIndex := e.stepIndex(definition, *instance.CurrentStepID)
	if stepIndex < 0 {
		return nil, fmt.Errorf("current step %d not found in workflow %d", *instance.CurrentStepID, definition.ID)
	}
	step := definition.Steps[stepIndex]

	approver, err := e.users.FindByID(spanCtx, result.ApproverID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load approver: %w", err)
	}
	if !e.canAct(approver, step) {
		return nil, ErrNotAuthorized
	}

	if !result.Approved {
		e.appendHistory(instance, models.ApprovalHistoryEntry{
			StepID:       step.ID,
			StepName:     step.Name,
			Action:       "rejected",
			ApproverID:   &approver.ID,
			ApproverName: approver.FullName,
			Comments:     result.Comments,
			Timestamp:    e.now().UTC().Format("2006-01-02 15:04:05"),
		})

		if step.IsRequired {
			e.terminate(instance, models.WorkflowStatusRejected, result.Comments)
		} else {
			e.progress(spanCtx, instance, definition, stepIndex)
		}
	} else {
		e.appendHistory(instance, models.ApprovalHistoryEntry{
			StepID:       step.ID,
			StepName:     step.Name,
			Action:       "approved",
			ApproverID:   &approver.ID,
			ApproverName: approver.FullName,
			Comments:     result.Comments,
			Timestamp:    e.now().UTC().Format("2006-01-02 15:04:05"),
		})

		e.progress(spanCtx, instance, definition, stepIndex)
	}

	if err := e.workflows.SaveInstance(spanCtx, instance); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist workflow instance: %w", err)
	}

	return instance, nil
}

// Cancel terminates a non-terminal instance as cancelled.
func (e *Engine) Cancel(ctx context.Context, instanceID uint, reason string) (*models.WorkflowInstance, error) {
	instance, err := e.workflows.FindInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow instance: %w", err)
	}

	if instance.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	e.terminate(instance, models.WorkflowStatusCancelled, reason)

	if err := e.workflows.SaveInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to persist workflow instance: %w", err)
	}

	return instance, nil
}

// CanAct reports whether the user may decide the instance's current step.
func (e *Engine) CanAct(instance *models.WorkflowInstance, user *models.User) bool {
	if instance.Workflow == nil || instance.CurrentStepID == nil {
		return false
	}
	index := e.stepIndex(instance.Workflow, *instance.CurrentStepID)
	if index < 0 {
		return false
	}
	return e.canAct(user, instance.Workflow.Steps[index])
}

// activateStep marks the step at index as current, moving the instance into
// in_progress, and recomputes the due date for its activation. Notification
// steps auto-progress: the notification is sent, the step is recorded as
// done and activation continues with the next step.
func (e *Engine) activateStep(ctx context.Context, instance *models.WorkflowInstance, definition *models.WorkflowDefinition, index int) {
	step := definition.Steps[index]

	instance.Status = models.WorkflowStatusInProgress
	instance.CurrentStepID = &definition.Steps[index].ID

	if !instance.DeadlineFixed {
		dueDate := e.dueDateFor(instance.StartedAt, definition.Steps, index)
		instance.DueDate = &dueDate
	}

	if step.StepType == models.StepTypeNotification {
		e.appendHistory(instance, models.ApprovalHistoryEntry{
			StepID:       step.ID,
			StepName:     step.Name,
			Action:       "notification_sent",
			ApproverName: "System",
			Timestamp:    e.now().UTC().Format("2006-01-02 15:04:05"),
		})
		e.notifyStep(ctx, instance, step, models.TemplateWorkflowStep)
		e.progress(ctx, instance, definition, index)
		return
	}

	e.notifyStep(ctx, instance, step, models.TemplateWorkflowAssigned)
}

// progress moves past the step at index: either activating the next step or
// completing the workflow as approved.
func (e *Engine) progress(ctx context.Context, instance *models.WorkflowInstance, definition *models.WorkflowDefinition, index int) {
	if index+1 < len(definition.Steps) {
		e.activateStep(ctx, instance, definition, index+1)
		return
	}

	instance.CurrentStepID = nil
	e.terminate(instance, models.WorkflowStatusApproved, "")
}

func (e *Engine) terminate(instance *models.WorkflowInstance, status, comments string) {
	completedAt := e.now().UTC()
	instance.Status = status
	instance.CompletedAt = &completedAt
	if comments != "" {
		instance.Comments = comments
	}
	observability.WorkflowInstancesCompleted().WithLabelValues(instance.EntityType, status).Inc()
}

// dueDateFor implements the SLA contract: start time plus the cumulative
// days-to-complete of every step up to and including the current one.
func (e *Engine) dueDateFor(startedAt time.Time, steps []models.WorkflowStep, currentIndex int) time.Time {
	days := 0
	for i := 0; i <= currentIndex && i < len(steps); i++ {
		days += steps[i].DaysToComplete
	}
	return startedAt.AddDate(0, 0, days)
}

func (e *Engine) stepIndex(definition *models.WorkflowDefinition, stepID uint) int {
	for i, step := range definition.Steps {
		if step.ID == stepID {
			return i
		}
	}
	return -1
}

func (e *Engine) canAct(user *models.User, step models.WorkflowStep) bool {
	if user == nil {
		return false
	}

	if step.ApproverRole != "" && user.Role == step.ApproverRole {
		return true
	}

	for _, id := range decodeApproverIDs(step.ApproverUserIDs) {
		if id == user.ID {
			return true
		}
	}

	return false
}

// notifyStep fans the step out to its approvers. Notification failures are
// logged and absorbed: governance messaging never fails a workflow mutation.
func (e *Engine) notifyStep(ctx context.Context, instance *models.WorkflowInstance, step models.WorkflowStep, templateKind string) {
	if e.notifier == nil {
		return
	}

	for _, recipient := range e.stepRecipients(ctx, step) {
		payload := map[string]any{
			"instance_id": instance.ID,
			"entity_type": instance.EntityType,
			"entity_id":   instance.EntityID,
			"step_name":   step.Name,
		}
		if instance.DueDate != nil {
			payload["due_date"] = instance.DueDate.UTC().Format("2006-01-02 15:04:05")
		}

		if err := e.notifier.Notify(ctx, recipient, templateKind, payload); err != nil {
			e.logger.Warn().
				Err(err).
				Uint("recipient_id", recipient.ID).
				Str("step", step.Name).
				Msg("failed to deliver workflow notification")
		}
	}
}

func (e *Engine) stepRecipients(ctx context.Context, step models.WorkflowStep) []models.User {
	var recipients []models.User
	seen := map[uint]struct{}{}

	if ids := decodeApproverIDs(step.ApproverUserIDs); len(ids) > 0 {
		users, err := e.users.FindByIDs(ctx, ids)
		if err != nil {
			e.logger.Warn().Err(err).Str("step", step.Name).Msg("failed to resolve step approver users")
		}
		for _, user := range users {
			if _, ok := seen[user.ID]; !ok {
				seen[user.ID] = struct{}{}
				recipients = append(recipients, user)
			}
		}
	}

	if step.ApproverRole != "" {
		users, err := e.users.FindByRole(ctx, step.ApproverRole)
		if err != nil {
			e.logger.Warn().Err(err).Str("step", step.Name).Msg("failed to resolve step approver role")
		}
		for _, user := range users {
			if _, ok := seen[user.ID]; !ok {
				seen[user.ID] = struct{}{}
				recipients = append(recipients, user)
			}
		}
	}

	return recipients
}

func (e *Engine) appendHistory(instance *models.WorkflowInstance, entry models.ApprovalHistoryEntry) {
	var history []models.ApprovalHistoryEntry
	if len(instance.ApprovalHistory) > 0 {
		if err := json.Unmarshal(instance.ApprovalHistory, &history); err != nil {
			e.logger.Warn().Err(err).Uint("instance_id", instance.ID).Msg("resetting unreadable approval history")
			history = nil
		}
	}

	history = append(history, entry)
	encoded, err := json.Marshal(history)
	if err != nil {
		e.logger.Warn().Err(err).Uint("instance_id", instance.ID).Msg("failed to encode approval history")
		return
	}
	instance.ApprovalHistory = encoded
}

func decodeApproverIDs(raw []byte) []uint {
	if len(raw) == 0 {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}
