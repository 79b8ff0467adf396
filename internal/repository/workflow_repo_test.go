package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/isms-go-api/internal/models"
)

func seedDefinition(t *testing.T, repo WorkflowRepository, name, entityType string, active bool) *models.WorkflowDefinition {
	t.Helper()

	definition := models.WorkflowDefinition{
		Name:       name,
		EntityType: entityType,
		IsActive:   active,
		Steps: []models.WorkflowStep{
			{Position: 2, Name: "Final sign-off", ApproverRole: "ciso", StepType: models.StepTypeApproval, DaysToComplete: 3, IsRequired: true},
			{Position: 1, Name: "First review", ApproverRole: "manager", StepType: models.StepTypeApproval, DaysToComplete: 5, IsRequired: true},
		},
	}
	require.NoError(t, repo.CreateDefinition(context.Background(), &definition))
	return &definition
}

func TestFindDefinitionReturnsStepsInPositionOrder(t *testing.T) {
	db := setupRepoDB(t, &models.WorkflowDefinition{}, &models.WorkflowStep{})
	repo := NewWorkflowRepository(db)
	seedDefinition(t, repo, "Document Approval", "Document", true)

	definition, err := repo.FindDefinition(context.Background(), "Document", "Document Approval")
	require.NoError(t, err)
	require.NotNil(t, definition)
	require.Len(t, definition.Steps, 2)
	require.Equal(t, "First review", definition.Steps[0].Name)
	require.Equal(t, "Final sign-off", definition.Steps[1].Name)
}

func TestFindDefinitionMissingOrInactiveIsNil(t *testing.T) {
	db := setupRepoDB(t, &models.WorkflowDefinition{}, &models.WorkflowStep{})
	repo := NewWorkflowRepository(db)
	seedDefinition(t, repo, "Dormant Process", "Document", false)

	definition, err := repo.FindDefinition(context.Background(), "Document", "Nonexistent")
	require.NoError(t, err)
	require.Nil(t, definition)

	definition, err = repo.FindDefinition(context.Background(), "Document", "Dormant Process")
	require.NoError(t, err)
	require.Nil(t, definition, "inactive definitions must not resolve")
}

func TestFindActiveInstanceIgnoresTerminalStates(t *testing.T) {
	db := setupRepoDB(t, &models.WorkflowDefinition{}, &models.WorkflowStep{}, &models.WorkflowInstance{})
	repo := NewWorkflowRepository(db)
	definition := seedDefinition(t, repo, "Document Approval", "Document", true)

	started := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	terminal := models.WorkflowInstance{
		WorkflowID: definition.ID,
		EntityType: "Document",
		EntityID:   7,
		Status:     models.WorkflowStatusRejected,
		StartedAt:  started,
	}
	require.NoError(t, repo.CreateInstance(context.Background(), &terminal))

	found, err := repo.FindActiveInstance(context.Background(), "Document", 7, definition.ID)
	require.NoError(t, err)
	require.Nil(t, found, "terminal instances do not block a restart")

	active := models.WorkflowInstance{
		WorkflowID: definition.ID,
		EntityType: "Document",
		EntityID:   7,
		Status:     models.WorkflowStatusInProgress,
		StartedAt:  started.Add(time.Hour),
	}
	require.NoError(t, repo.CreateInstance(context.Background(), &active))

	found, err = repo.FindActiveInstance(context.Background(), "Document", 7, definition.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, active.ID, found.ID)
}

func TestListInstancesFiltersAndCounts(t *testing.T) {
	db := setupRepoDB(t, &models.WorkflowDefinition{}, &models.WorkflowStep{}, &models.WorkflowInstance{})
	repo := NewWorkflowRepository(db)
	definition := seedDefinition(t, repo, "Document Approval", "Document", true)

	started := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	statuses := []string{
		models.WorkflowStatusInProgress,
		models.WorkflowStatusApproved,
		models.WorkflowStatusInProgress,
	}
	for i, status := range statuses {
		instance := models.WorkflowInstance{
			WorkflowID: definition.ID,
			EntityType: "Document",
			EntityID:   uint(i + 1),
			Status:     status,
			StartedAt:  started.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.CreateInstance(context.Background(), &instance))
	}

	instances, total, err := repo.ListInstances(context.Background(), WorkflowInstanceFilter{Status: models.WorkflowStatusInProgress})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, instances, 2)
	// Newest first, with the definition and its ordered steps attached.
	require.Equal(t, uint(3), instances[0].EntityID)
	require.NotNil(t, instances[0].Workflow)
	require.Len(t, instances[0].Workflow.Steps, 2)

	entityID := uint(2)
	_, total, err = repo.ListInstances(context.Background(), WorkflowInstanceFilter{EntityID: &entityID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}
