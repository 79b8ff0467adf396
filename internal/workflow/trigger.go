package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/models"
)

// Canonical workflow definition names. Seeding and trigger rules agree on
// these; renaming one side orphans the other.
const (
	WorkflowIncidentEscalation = "Incident Escalation"
	WorkflowBreachNotification = "Data Breach Notification"
	WorkflowTreatmentApproval  = "Treatment Plan Approval"
	WorkflowDocumentApproval   = "Document Approval"
)

// breachNotificationWindow is the GDPR Art. 33 supervisory authority
// notification deadline, counted from breach detection.
const breachNotificationWindow = 72 * time.Hour

// TriggerContext carries one committed entity mutation into rule
// evaluation. It is transient and never persisted.
type TriggerContext struct {
	Entity  audit.Recordable
	IsNew   bool
	Changes audit.ChangeSet
}

// TriggerResult reports the outcome of a single matched rule.
type TriggerResult struct {
	Rule     string
	Instance *models.WorkflowInstance
	Err      error
}

type triggerRule struct {
	name    string
	kind    audit.Kind
	applies func(tc TriggerContext) bool
	launch  func(ctx context.Context, e *Engine, tc TriggerContext) (*models.WorkflowInstance, error)
}

// Evaluator matches committed entity mutations against a fixed rule table
// and starts the corresponding workflow instances.
type Evaluator struct {
	engine *Engine
	logger zerolog.Logger
	rules  []triggerRule
}

// NewEvaluator constructs the trigger evaluator with its built-in rules.
func NewEvaluator(engine *Engine, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		engine: engine,
		logger: logger.With().Str("component", "workflow_trigger").Logger(),
		rules:  builtinRules(),
	}
}

// ShouldTrigger reports whether any rule would fire for the mutation. It is
// a cheap pre-check with no side effects.
func (ev *Evaluator) ShouldTrigger(entity audit.Recordable, isNew bool, changes audit.ChangeSet) bool {
	tc := TriggerContext{Entity: entity, IsNew: isNew, Changes: changes}
	for _, rule := range ev.rules {
		if rule.kind == entity.AuditKind() && ev.applies(rule, tc) {
			return true
		}
	}
	return false
}

// Evaluate runs every matching rule for the mutation. Each rule is isolated:
// a panic or error in one rule is logged with the rule name and entity
// identity, and remaining rules still run. Errors never propagate to the
// caller; the originating mutation is already committed.
func (ev *Evaluator) Evaluate(ctx context.Context, entity audit.Recordable, isNew bool, changes audit.ChangeSet) []TriggerResult {
	tc := TriggerContext{Entity: entity, IsNew: isNew, Changes: changes}

	var results []TriggerResult
	for _, rule := range ev.rules {
		if rule.kind != entity.AuditKind() || !ev.applies(rule, tc) {
			continue
		}

		instance, err := ev.launch(ctx, rule, tc)
		if err != nil {
			ev.logger.Error().
				Err(err).
				Str("rule", rule.name).
				Str("entity_type", string(entity.AuditKind())).
				Uint("entity_id", entity.AuditID()).
				Msg("workflow trigger failed")
		} else if instance != nil {
			ev.logger.Info().
				Str("rule", rule.name).
				Str("entity_type", string(entity.AuditKind())).
				Uint("entity_id", entity.AuditID()).
				Uint("instance_id", instance.ID).
				Msg("workflow triggered")
		}

		results = append(results, TriggerResult{Rule: rule.name, Instance: instance, Err: err})
	}

	return results
}

func (ev *Evaluator) applies(rule triggerRule, tc TriggerContext) (applies bool) {
	defer func() {
		if r := recover(); r != nil {
			ev.logger.Error().
				Str("rule", rule.name).
				Str("entity_type", string(tc.Entity.AuditKind())).
				Uint("entity_id", tc.Entity.AuditID()).
				Interface("panic", r).
				Msg("trigger rule predicate panicked")
			applies = false
		}
	}()
	return rule.applies(tc)
}

func (ev *Evaluator) launch(ctx context.Context, rule triggerRule, tc TriggerContext) (instance *models.WorkflowInstance, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("trigger rule panicked: %v", r)
		}
	}()
	return rule.launch(ctx, ev.engine, tc)
}

func builtinRules() []triggerRule {
	return []triggerRule{
		{
			name: "incident_escalation",
			kind: audit.KindIncident,
			applies: func(tc TriggerContext) bool {
				if tc.IsNew {
					return true
				}
				return tc.Changes.Contains("severity") || tc.Changes.Contains("data_breach_occurred")
			},
			launch: func(ctx context.Context, e *Engine, tc TriggerContext) (*models.WorkflowInstance, error) {
				return e.Start(ctx, string(audit.KindIncident), tc.Entity.AuditID(), WorkflowIncidentEscalation, initiatorOptions(ctx)...)
			},
		},
		{
			name: "gdpr_breach_notification",
			kind: audit.KindIncident,
			applies: func(tc TriggerContext) bool {
				incident, ok := tc.Entity.(*models.Incident)
				if !ok {
					return false
				}
				if tc.IsNew {
					return incident.DataBreachOccurred
				}
				return breachFlagFlipped(tc.Changes)
			},
			launch: func(ctx context.Context, e *Engine, tc TriggerContext) (*models.WorkflowInstance, error) {
				incident := tc.Entity.(*models.Incident)

				detectedAt := time.Now().UTC()
				if incident.DetectedAt != nil {
					detectedAt = incident.DetectedAt.UTC()
				}

				opts := append(initiatorOptions(ctx), WithFixedDeadline(detectedAt.Add(breachNotificationWindow)))
				return e.Start(ctx, string(audit.KindIncident), incident.AuditID(), WorkflowBreachNotification, opts...)
			},
		},
		{
			name: "treatment_plan_approval",
			kind: audit.KindRiskTreatmentPlan,
			applies: func(tc TriggerContext) bool {
				plan, ok := tc.Entity.(*models.RiskTreatmentPlan)
				return ok && tc.IsNew && plan.Status == models.TreatmentStatusPlanned
			},
			launch: func(ctx context.Context, e *Engine, tc TriggerContext) (*models.WorkflowInstance, error) {
				return e.Start(ctx, string(audit.KindRiskTreatmentPlan), tc.Entity.AuditID(), WorkflowTreatmentApproval, initiatorOptions(ctx)...)
			},
		},
		{
			name: "document_approval",
			kind: audit.KindDocument,
			applies: func(tc TriggerContext) bool {
				document, ok := tc.Entity.(*models.Document)
				return ok && tc.IsNew && document.RequiresApproval()
			},
			launch: func(ctx context.Context, e *Engine, tc TriggerContext) (*models.WorkflowInstance, error) {
				return e.Start(ctx, string(audit.KindDocument), tc.Entity.AuditID(), WorkflowDocumentApproval, initiatorOptions(ctx)...)
			},
		},
	}
}

// breachFlagFlipped detects the false-to-true transition of the breach flag.
// Clearing the flag or re-saving an already flagged incident does not
// restart the notification clock.
func breachFlagFlipped(changes audit.ChangeSet) bool {
	change, ok := changes["data_breach_occurred"]
	if !ok {
		return false
	}
	oldFlag, _ := change.Old.(bool)
	newFlag, _ := change.New.(bool)
	return !oldFlag && newFlag
}

func initiatorOptions(ctx context.Context) []StartOption {
	actor := audit.ActorFromContext(ctx)
	if actor.ID == nil {
		return nil
	}
	return []StartOption{WithInitiator(*actor.ID)}
}
