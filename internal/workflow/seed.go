package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

// SeedDefinitions installs the built-in workflow definitions on an empty
// database. An already seeded database is left untouched so operator edits
// to steps or approver roles survive restarts.
func SeedDefinitions(ctx context.Context, workflows repository.WorkflowRepository, logger zerolog.Logger) error {
	count, err := workflows.CountDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to count workflow definitions: %w", err)
	}
	if count > 0 {
		return nil
	}

	definitions := []models.WorkflowDefinition{
		{
			Name:        WorkflowIncidentEscalation,
			EntityType:  string(audit.KindIncident),
			Description: "Escalates new or reclassified incidents to the incident manager and CISO.",
			IsActive:    true,
			Steps: []models.WorkflowStep{
				{
					Position:       1,
					Name:           "Incident manager review",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleIncidentManager,
					IsRequired:     true,
					DaysToComplete: 1,
				},
				{
					Position:       2,
					Name:           "CISO sign-off",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleCISO,
					IsRequired:     true,
					DaysToComplete: 2,
				},
			},
		},
		{
			Name:        WorkflowBreachNotification,
			EntityType:  string(audit.KindIncident),
			Description: "Coordinates the supervisory authority notification for personal data breaches.",
			IsActive:    true,
			Steps: []models.WorkflowStep{
				{
					Position:       1,
					Name:           "DPO breach assessment",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleDPO,
					IsRequired:     true,
					DaysToComplete: 1,
				},
				{
					Position:       2,
					Name:           "Management notification",
					StepType:       models.StepTypeNotification,
					ApproverRole:   models.RoleCEO,
					DaysToComplete: 1,
				},
				{
					Position:       3,
					Name:           "Authority notification confirmed",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleDPO,
					IsRequired:     true,
					DaysToComplete: 1,
				},
			},
		},
		{
			Name:        WorkflowTreatmentApproval,
			EntityType:  string(audit.KindRiskTreatmentPlan),
			Description: "Approval chain for newly planned risk treatment measures.",
			IsActive:    true,
			Steps: []models.WorkflowStep{
				{
					Position:       1,
					Name:           "Risk manager review",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleRiskManager,
					IsRequired:     true,
					DaysToComplete: 5,
				},
				{
					Position:       2,
					Name:           "CISO approval",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleCISO,
					IsRequired:     true,
					DaysToComplete: 5,
				},
			},
		},
		{
			Name:        WorkflowDocumentApproval,
			EntityType:  string(audit.KindDocument),
			Description: "Review and release of policies and procedures.",
			IsActive:    true,
			Steps: []models.WorkflowStep{
				{
					Position:       1,
					Name:           "Management review",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleManager,
					IsRequired:     true,
					DaysToComplete: 7,
				},
				{
					Position:       2,
					Name:           "CISO release",
					StepType:       models.StepTypeApproval,
					ApproverRole:   models.RoleCISO,
					IsRequired:     true,
					DaysToComplete: 3,
				},
			},
		},
	}

	for i := range definitions {
		if err := workflows.CreateDefinition(ctx, &definitions[i]); err != nil {
			return fmt.Errorf("failed to seed workflow %q: %w", definitions[i].Name, err)
		}
	}

	logger.Info().Int("count", len(definitions)).Msg("seeded default workflow definitions")
	return nil
}
