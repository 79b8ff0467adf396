package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

type recordedNotification struct {
	RecipientID  uint
	TemplateKind string
	Payload      map[string]any
}

type fakeNotifier struct {
	sent []recordedNotification
}

func (f *fakeNotifier) Notify(_ context.Context, recipient models.User, templateKind string, payload map[string]any) error {
	f.sent = append(f.sent, recordedNotification{RecipientID: recipient.ID, TemplateKind: templateKind, Payload: payload})
	return nil
}

type engineFixture struct {
	db        *gorm.DB
	engine    *Engine
	workflows repository.WorkflowRepository
	notifier  *fakeNotifier
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.WorkflowDefinition{},
		&models.WorkflowStep{},
		&models.WorkflowInstance{},
	))

	workflows := repository.NewWorkflowRepository(db)
	users := repository.NewUserRepository(db)
	notifier := &fakeNotifier{}

	require.NoError(t, SeedDefinitions(context.Background(), workflows, zerolog.Nop()))

	return &engineFixture{
		db:        db,
		engine:    NewEngine(workflows, users, notifier, zerolog.Nop()),
		workflows: workflows,
		notifier:  notifier,
	}
}

func (f *engineFixture) createUser(t *testing.T, role string) models.User {
	t.Helper()
	user := models.User{
		Email:    fmt.Sprintf("%s-%d@example.com", role, time.Now().UnixNano()),
		FullName: "Test " + role,
		Role:     role,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func TestStartActivatesFirstStepWithSLADeadline(t *testing.T) {
	f := setupEngine(t)
	f.createUser(t, models.RoleRiskManager)

	instance, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 10, WorkflowTreatmentApproval)
	require.NoError(t, err)
	require.NotNil(t, instance)

	require.Equal(t, models.WorkflowStatusInProgress, instance.Status)
	require.NotNil(t, instance.CurrentStepID)
	require.False(t, instance.DeadlineFixed)

	// First step of the treatment approval chain carries a five day SLA.
	require.NotNil(t, instance.DueDate)
	expected := instance.StartedAt.AddDate(0, 0, 5)
	require.True(t, instance.DueDate.Equal(expected))

	// The assigned approver was notified.
	require.NotEmpty(t, f.notifier.sent)
	require.Equal(t, models.TemplateWorkflowAssigned, f.notifier.sent[0].TemplateKind)
}

func TestStartNotifiesWithPersistedInstanceID(t *testing.T) {
	f := setupEngine(t)
	f.createUser(t, models.RoleRiskManager)

	instance, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 12, WorkflowTreatmentApproval)
	require.NoError(t, err)
	require.NotZero(t, instance.ID)

	// The row is inserted before the first step notifies, so approvers see
	// the assigned identity rather than a zero id.
	require.NotEmpty(t, f.notifier.sent)
	require.Equal(t, instance.ID, f.notifier.sent[0].Payload["instance_id"])
}

func TestStartIsIdempotentPerEntityAndWorkflow(t *testing.T) {
	f := setupEngine(t)

	first, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 11, WorkflowTreatmentApproval)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 11, WorkflowTreatmentApproval)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)

	instances, total, err := f.workflows.ListInstances(context.Background(), repository.WorkflowInstanceFilter{EntityType: "RiskTreatmentPlan"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, instances, 1)
}

func TestStartWithUnknownWorkflowIsNoOp(t *testing.T) {
	f := setupEngine(t)

	instance, err := f.engine.Start(context.Background(), "Asset", 3, "Nonexistent Process")
	require.NoError(t, err)
	require.Nil(t, instance)
}

func TestFixedDeadlineSurvivesStepAdvancement(t *testing.T) {
	f := setupEngine(t)
	dpo := f.createUser(t, models.RoleDPO)

	deadline := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	instance, err := f.engine.Start(context.Background(), "Incident", 20, WorkflowBreachNotification, WithFixedDeadline(deadline))
	require.NoError(t, err)
	require.True(t, instance.DeadlineFixed)
	require.True(t, instance.DueDate.Equal(deadline))

	advanced, err := f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: dpo.ID, Approved: true})
	require.NoError(t, err)
	require.True(t, advanced.DueDate.Equal(deadline), "fixed deadlines must never be recomputed")
}

func TestApprovalChainCompletesAsApproved(t *testing.T) {
	f := setupEngine(t)
	riskManager := f.createUser(t, models.RoleRiskManager)
	ciso := f.createUser(t, models.RoleCISO)

	instance, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 30, WorkflowTreatmentApproval)
	require.NoError(t, err)

	instance, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: riskManager.ID, Approved: true, Comments: "looks solid"})
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusInProgress, instance.Status)

	instance, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: ciso.ID, Approved: true})
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusApproved, instance.Status)
	require.NotNil(t, instance.CompletedAt)
	require.Nil(t, instance.CurrentStepID)
}

func TestRequiredStepRejectionTerminatesInstance(t *testing.T) {
	f := setupEngine(t)
	riskManager := f.createUser(t, models.RoleRiskManager)

	instance, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 31, WorkflowTreatmentApproval)
	require.NoError(t, err)

	instance, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: riskManager.ID, Approved: false, Comments: "budget missing"})
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusRejected, instance.Status)
	require.Equal(t, "budget missing", instance.Comments)
	require.NotNil(t, instance.CompletedAt)
}

func TestTerminalInstanceRefusesFurtherTransitions(t *testing.T) {
	f := setupEngine(t)
	riskManager := f.createUser(t, models.RoleRiskManager)

	instance, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 32, WorkflowTreatmentApproval)
	require.NoError(t, err)

	instance, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: riskManager.ID, Approved: false})
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusRejected, instance.Status)

	_, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: riskManager.ID, Approved: true})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.engine.Cancel(context.Background(), instance.ID, "cleanup")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnauthorizedApproverIsRefused(t *testing.T) {
	f := setupEngine(t)
	outsider := f.createUser(t, models.RoleManager)

	instance, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 33, WorkflowTreatmentApproval)
	require.NoError(t, err)

	_, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: outsider.ID, Approved: true})
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCancelActiveInstance(t *testing.T) {
	f := setupEngine(t)

	instance, err := f.engine.Start(context.Background(), "RiskTreatmentPlan", 34, WorkflowTreatmentApproval)
	require.NoError(t, err)

	cancelled, err := f.engine.Cancel(context.Background(), instance.ID, "risk accepted instead")
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusCancelled, cancelled.Status)
	require.Equal(t, "risk accepted instead", cancelled.Comments)
}

func TestNotificationStepsAutoProgress(t *testing.T) {
	f := setupEngine(t)
	dpo := f.createUser(t, models.RoleDPO)
	f.createUser(t, models.RoleCEO)

	instance, err := f.engine.Start(context.Background(), "Incident", 40, WorkflowBreachNotification)
	require.NoError(t, err)

	// Step 1: DPO assessment. Approving it runs through the notification
	// step (management) straight to the final DPO confirmation step.
	instance, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: dpo.ID, Approved: true})
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusInProgress, instance.Status)

	var stepTemplates []string
	for _, sent := range f.notifier.sent {
		stepTemplates = append(stepTemplates, sent.TemplateKind)
	}
	require.Contains(t, stepTemplates, models.TemplateWorkflowStep)

	instance, err = f.engine.Advance(context.Background(), instance.ID, StepResult{ApproverID: dpo.ID, Approved: true})
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusApproved, instance.Status)
}
