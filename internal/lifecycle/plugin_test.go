package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
	"github.com/noah-isme/isms-go-api/internal/service"
	"github.com/noah-isme/isms-go-api/internal/workflow"
)

func setupInstrumentedDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Risk{},
		&models.RiskTreatmentPlan{},
		&models.Incident{},
		&models.Document{},
		&models.AuditLogEntry{},
		&models.WorkflowDefinition{},
		&models.WorkflowStep{},
		&models.WorkflowInstance{},
		&models.Notification{},
	))

	auditRepo := repository.NewAuditLogRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	userRepo := repository.NewUserRepository(db)

	engine := workflow.NewEngine(workflowRepo, userRepo, nil, zerolog.Nop())
	evaluator := workflow.NewEvaluator(engine, zerolog.Nop())
	capture := audit.NewCapture(service.NewAuditSink(auditRepo), zerolog.Nop())

	require.NoError(t, db.Use(New(capture, evaluator, zerolog.Nop())))
	require.NoError(t, workflow.SeedDefinitions(context.Background(), workflowRepo, zerolog.Nop()))

	return db
}

func auditEntries(t *testing.T, db *gorm.DB, entityType string) []models.AuditLogEntry {
	t.Helper()
	var entries []models.AuditLogEntry
	require.NoError(t, db.Where("entity_type = ?", entityType).Order("id ASC").Find(&entries).Error)
	return entries
}

func workflowInstances(t *testing.T, db *gorm.DB, entityType string) []models.WorkflowInstance {
	t.Helper()
	var instances []models.WorkflowInstance
	require.NoError(t, db.Where("entity_type = ?", entityType).Find(&instances).Error)
	return instances
}

func TestTreatmentPlanCreateProducesAuditEntryAndWorkflow(t *testing.T) {
	db := setupInstrumentedDB(t)
	risks := repository.NewRiskRepository(db)

	risk := models.Risk{Title: "Unpatched VPN gateway", RiskScore: 16}
	require.NoError(t, risks.Create(context.Background(), &risk))

	plan := models.RiskTreatmentPlan{
		RiskID: risk.ID,
		Title:  "Patch rollout",
		Status: models.TreatmentStatusPlanned,
	}
	require.NoError(t, risks.CreateTreatmentPlan(context.Background(), &plan))

	entries := auditEntries(t, db, "RiskTreatmentPlan")
	require.Len(t, entries, 1)
	require.Equal(t, "created", entries[0].Action)
	require.NotNil(t, entries[0].EntityID)
	require.Equal(t, plan.ID, *entries[0].EntityID)
	require.Equal(t, "Patch rollout", entries[0].NewValues["title"])

	instances := workflowInstances(t, db, "RiskTreatmentPlan")
	require.Len(t, instances, 1)
	require.Equal(t, models.WorkflowStatusInProgress, instances[0].Status)
	require.Equal(t, plan.ID, instances[0].EntityID)
}

func TestIncidentUpdateRecordsOnlyChangedFields(t *testing.T) {
	db := setupInstrumentedDB(t)
	incidents := repository.NewIncidentRepository(db)

	incident := models.Incident{IncidentNumber: "INC-001", Title: "Phishing wave", Severity: models.SeverityLow, Status: "open"}
	require.NoError(t, incidents.Create(context.Background(), &incident))

	incident.Severity = models.SeverityCritical
	require.NoError(t, incidents.Update(context.Background(), &incident))

	entries := auditEntries(t, db, "Incident")
	require.Len(t, entries, 2)

	updated := entries[1]
	require.Equal(t, "updated", updated.Action)

	var changedFields []string
	require.NoError(t, json.Unmarshal(updated.ChangedFields, &changedFields))
	require.Equal(t, []string{"severity"}, changedFields)
	require.Equal(t, "low", updated.OldValues["severity"])
	require.Equal(t, "critical", updated.NewValues["severity"])
}

func TestNoOpUpdateLeavesNoRecord(t *testing.T) {
	db := setupInstrumentedDB(t)
	incidents := repository.NewIncidentRepository(db)

	incident := models.Incident{IncidentNumber: "INC-002", Title: "Lost badge", Severity: models.SeverityLow, Status: "open"}
	require.NoError(t, incidents.Create(context.Background(), &incident))

	require.NoError(t, incidents.Update(context.Background(), &incident))

	entries := auditEntries(t, db, "Incident")
	require.Len(t, entries, 1, "re-saving unchanged state must not add entries")
}

func TestBreachFlagFlipStartsDeadlineWorkflow(t *testing.T) {
	db := setupInstrumentedDB(t)
	incidents := repository.NewIncidentRepository(db)

	detected := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	incident := models.Incident{
		IncidentNumber: "INC-003",
		Title:          "Database exposure",
		Severity:       models.SeverityHigh,
		Status:         "open",
		DetectedAt:     &detected,
	}
	require.NoError(t, incidents.Create(context.Background(), &incident))

	incident.DataBreachOccurred = true
	require.NoError(t, incidents.Update(context.Background(), &incident))

	var breach models.WorkflowInstance
	err := db.Joins("JOIN workflow_definitions ON workflow_definitions.id = workflow_instances.workflow_id").
		Where("workflow_definitions.name = ?", workflow.WorkflowBreachNotification).
		First(&breach).Error
	require.NoError(t, err)

	require.True(t, breach.DeadlineFixed)
	require.NotNil(t, breach.DueDate)
	require.True(t, breach.DueDate.UTC().Equal(detected.Add(72*time.Hour)), "deadline must be detection time plus 72h")
}

func TestIncidentDeleteRecordsOldValues(t *testing.T) {
	db := setupInstrumentedDB(t)
	incidents := repository.NewIncidentRepository(db)

	incident := models.Incident{IncidentNumber: "INC-004", Title: "Test entry", Severity: models.SeverityLow, Status: "open"}
	require.NoError(t, incidents.Create(context.Background(), &incident))
	require.NoError(t, incidents.Delete(context.Background(), &incident))

	entries := auditEntries(t, db, "Incident")
	require.Len(t, entries, 2)
	require.Equal(t, "deleted", entries[1].Action)
	require.Equal(t, "Test entry", entries[1].OldValues["title"])
	require.Nil(t, entries[1].NewValues)
}

func TestUserCredentialChangeIsMasked(t *testing.T) {
	db := setupInstrumentedDB(t)

	user := models.User{Email: "ciso@example.com", FullName: "Casey Moreno", Role: models.RoleCISO, PasswordHash: "bcrypt$old"}
	require.NoError(t, db.Create(&user).Error)

	user.PasswordHash = "bcrypt$new"
	require.NoError(t, db.Save(&user).Error)

	entries := auditEntries(t, db, "User")
	require.Len(t, entries, 2)
	require.Equal(t, "***", entries[1].OldValues["password_hash"])
	require.Equal(t, "***", entries[1].NewValues["password_hash"])
}

func TestTransactionalCreateCommitsTrailAtomically(t *testing.T) {
	db := setupInstrumentedDB(t)

	incident := models.Incident{IncidentNumber: "INC-006", Title: "Committed inside tx", Severity: models.SeverityHigh, Status: "open"}
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&incident).Error
	})
	require.NoError(t, err)

	// The trail and the triggered workflow rode the same transaction.
	entries := auditEntries(t, db, "Incident")
	require.Len(t, entries, 1)
	require.Equal(t, "created", entries[0].Action)
	require.NotNil(t, entries[0].EntityID)
	require.Equal(t, incident.ID, *entries[0].EntityID)

	instances := workflowInstances(t, db, "Incident")
	require.Len(t, instances, 1)
	require.Equal(t, incident.ID, instances[0].EntityID)
}

func TestRolledBackCreateLeavesNoTrail(t *testing.T) {
	db := setupInstrumentedDB(t)
	abort := errors.New("abort")

	incident := models.Incident{IncidentNumber: "INC-007", Title: "Rolled back", Severity: models.SeverityHigh, Status: "open"}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&incident).Error; err != nil {
			return err
		}
		return abort
	})
	require.ErrorIs(t, err, abort)

	var incidents int64
	require.NoError(t, db.Model(&models.Incident{}).Count(&incidents).Error)
	require.Zero(t, incidents)

	require.Empty(t, auditEntries(t, db, "Incident"))
	require.Empty(t, workflowInstances(t, db, "Incident"))
}

func TestActorAttributionFlowsFromContext(t *testing.T) {
	db := setupInstrumentedDB(t)
	incidents := repository.NewIncidentRepository(db)

	actorID := uint(77)
	ctx := audit.WithActor(context.Background(), audit.Actor{ID: &actorID, ClientIP: "192.0.2.1", UserAgent: "go-test"})

	incident := models.Incident{IncidentNumber: "INC-005", Title: "Attributed", Severity: models.SeverityLow, Status: "open"}
	require.NoError(t, incidents.Create(ctx, &incident))

	entries := auditEntries(t, db, "Incident")
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ActorID)
	require.Equal(t, uint(77), *entries[0].ActorID)
	require.Equal(t, "192.0.2.1", entries[0].ClientIP)
}
