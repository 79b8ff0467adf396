package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

func setupEvaluator(t *testing.T) (*engineFixture, *Evaluator) {
	t.Helper()
	f := setupEngine(t)
	return f, NewEvaluator(f.engine, zerolog.Nop())
}

func TestIncidentCreationTriggersEscalation(t *testing.T) {
	f, evaluator := setupEvaluator(t)

	incident := &models.Incident{ID: 1, Severity: models.SeverityHigh}
	results := evaluator.Evaluate(context.Background(), incident, true, nil)

	require.Len(t, results, 1)
	require.Equal(t, "incident_escalation", results[0].Rule)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Instance)

	instances, _, err := f.workflows.ListInstances(context.Background(), repository.WorkflowInstanceFilter{EntityType: "Incident"})
	require.NoError(t, err)
	require.Len(t, instances, 1)
}

func TestSeverityChangeTriggersEscalation(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	incident := &models.Incident{ID: 2, Severity: models.SeverityCritical}
	changes := audit.ChangeSet{"severity": {Old: "low", New: "critical"}}

	require.True(t, evaluator.ShouldTrigger(incident, false, changes))

	results := evaluator.Evaluate(context.Background(), incident, false, changes)
	require.Len(t, results, 1)
	require.Equal(t, "incident_escalation", results[0].Rule)
}

func TestUnrelatedIncidentChangeTriggersNothing(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	incident := &models.Incident{ID: 3, Severity: models.SeverityLow}
	changes := audit.ChangeSet{"description": {Old: "a", New: "b"}}

	require.False(t, evaluator.ShouldTrigger(incident, false, changes))
	require.Empty(t, evaluator.Evaluate(context.Background(), incident, false, changes))
}

func TestBreachOnCreationStartsBothIncidentWorkflows(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	detected := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	incident := &models.Incident{
		ID:                 4,
		Severity:           models.SeverityCritical,
		DataBreachOccurred: true,
		DetectedAt:         &detected,
	}

	results := evaluator.Evaluate(context.Background(), incident, true, nil)
	require.Len(t, results, 2)

	var breach *TriggerResult
	for i := range results {
		if results[i].Rule == "gdpr_breach_notification" {
			breach = &results[i]
		}
	}
	require.NotNil(t, breach)
	require.NoError(t, breach.Err)
	require.NotNil(t, breach.Instance)
	require.True(t, breach.Instance.DeadlineFixed)
	require.True(t, breach.Instance.DueDate.Equal(detected.Add(72*time.Hour)))
}

func TestClearingBreachFlagDoesNotTrigger(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	incident := &models.Incident{ID: 5, Severity: models.SeverityLow}
	changes := audit.ChangeSet{"data_breach_occurred": {Old: true, New: false}}

	results := evaluator.Evaluate(context.Background(), incident, false, changes)
	for _, result := range results {
		require.NotEqual(t, "gdpr_breach_notification", result.Rule)
	}
}

func TestPlannedTreatmentPlanTriggersApproval(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	plan := &models.RiskTreatmentPlan{ID: 6, Status: models.TreatmentStatusPlanned}
	results := evaluator.Evaluate(context.Background(), plan, true, nil)

	require.Len(t, results, 1)
	require.Equal(t, "treatment_plan_approval", results[0].Rule)
	require.NotNil(t, results[0].Instance)
}

func TestNonPlannedTreatmentPlanDoesNotTrigger(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	plan := &models.RiskTreatmentPlan{ID: 7, Status: models.TreatmentStatusCompleted}
	require.False(t, evaluator.ShouldTrigger(plan, true, nil))
}

func TestPolicyDocumentTriggersApproval(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	policy := &models.Document{ID: 8, Category: models.DocumentCategoryPolicy}
	results := evaluator.Evaluate(context.Background(), policy, true, nil)
	require.Len(t, results, 1)
	require.Equal(t, "document_approval", results[0].Rule)

	record := &models.Document{ID: 9, Category: models.DocumentCategoryRecord}
	require.False(t, evaluator.ShouldTrigger(record, true, nil))
}

func TestEvaluateSurfacesRuleErrorsWithoutPropagating(t *testing.T) {
	f, evaluator := setupEvaluator(t)

	// Closing the underlying pool makes every engine start fail.
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	incident := &models.Incident{ID: 10, Severity: models.SeverityHigh}

	require.NotPanics(t, func() {
		results := evaluator.Evaluate(context.Background(), incident, true, nil)
		require.Len(t, results, 1)
		require.Error(t, results[0].Err)
		require.Nil(t, results[0].Instance)
	})
}

func TestInitiatorIsTakenFromActorContext(t *testing.T) {
	_, evaluator := setupEvaluator(t)

	actorID := uint(55)
	ctx := audit.WithActor(context.Background(), audit.Actor{ID: &actorID})

	plan := &models.RiskTreatmentPlan{ID: 11, Status: models.TreatmentStatusPlanned}
	results := evaluator.Evaluate(ctx, plan, true, nil)

	require.Len(t, results, 1)
	require.NotNil(t, results[0].Instance)
	require.NotNil(t, results[0].Instance.InitiatedBy)
	require.Equal(t, uint(55), *results[0].Instance.InitiatedBy)
}
