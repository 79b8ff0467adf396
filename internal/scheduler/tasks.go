package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
	"github.com/noah-isme/isms-go-api/internal/service"
)

const (
	reminderDedupTTL   = 48 * time.Hour
	reviewBatchSize    = 100
	breachReminderLead = 24 * time.Hour
)

// Tasks implements the recurring compliance task handlers.
type Tasks struct {
	risks         repository.RiskRepository
	incidents     repository.IncidentRepository
	workflows     repository.WorkflowRepository
	users         repository.UserRepository
	auditLogs     repository.AuditLogRepository
	reports       repository.ScheduledReportRepository
	notifications service.NotificationService
	redis         *redis.Client
	retention     time.Duration
	reviewWindow  time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewTasks constructs the task handler set.
func NewTasks(
	risks repository.RiskRepository,
	incidents repository.IncidentRepository,
	workflows repository.WorkflowRepository,
	users repository.UserRepository,
	auditLogs repository.AuditLogRepository,
	reports repository.ScheduledReportRepository,
	notifications service.NotificationService,
	redisClient *redis.Client,
	retentionDays int,
	reviewWindow time.Duration,
	logger zerolog.Logger,
) *Tasks {
	return &Tasks{
		risks:         risks,
		incidents:     incidents,
		workflows:     workflows,
		users:         users,
		auditLogs:     auditLogs,
		reports:       reports,
		notifications: notifications,
		redis:         redisClient,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
		reviewWindow:  reviewWindow,
		logger:        logger.With().Str("component", "scheduler_tasks").Logger(),
		now:           time.Now,
	}
}

// ReportRequest selects which scheduled report to generate. A nil ReportID
// runs every active report.
type ReportRequest struct {
	ReportID *uint `json:"report_id"`
}

// CheckDueReviews reminds risk owners of upcoming reviews and warns the DPO
// about fixed-deadline workflow instances approaching their due date.
// Reminder sends are deduplicated per risk and calendar day, so rerunning
// the task within a day cannot double-send.
func (t *Tasks) CheckDueReviews(ctx context.Context, _ []byte) error {
	now := t.now().UTC()
	threshold := now.Add(t.reviewWindow)

	risks, err := t.risks.ListDueForReview(ctx, threshold, reviewBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list risks due for review: %w", err)
	}

	reminded := 0
	for _, risk := range risks {
		fresh, err := t.claimReminder(ctx, "review_reminder", risk.ID, now)
		if err != nil {
			return fmt.Errorf("failed to check reminder dedup state: %w", err)
		}
		if !fresh {
			continue
		}

		recipients, err := t.riskRecipients(ctx, risk)
		if err != nil {
			return err
		}

		payload := map[string]any{
			"risk_id": risk.ID,
			"title":   risk.Title,
		}
		if risk.ReviewDate != nil {
			payload["review_date"] = risk.ReviewDate.UTC().Format("2006-01-02 15:04:05")
		}

		for _, recipient := range recipients {
			if err := t.notifications.Notify(ctx, recipient, models.TemplateReviewReminder, payload); err != nil {
				return fmt.Errorf("failed to send review reminder for risk %d: %w", risk.ID, err)
			}
		}
		reminded++
	}

	if err := t.remindBreachDeadlines(ctx, now); err != nil {
		return err
	}

	t.logger.Info().Int("due", len(risks)).Int("reminded", reminded).Msg("review reminder pass finished")
	return nil
}

// remindBreachDeadlines warns the DPO about active fixed-deadline instances
// due within the lead window or already overdue.
func (t *Tasks) remindBreachDeadlines(ctx context.Context, now time.Time) error {
	instances, err := t.workflows.ListInProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to list in-progress workflow instances: %w", err)
	}

	dpos, err := t.users.FindByRole(ctx, models.RoleDPO)
	if err != nil {
		return fmt.Errorf("failed to resolve DPO recipients: %w", err)
	}

	for _, instance := range instances {
		if !instance.DeadlineFixed || instance.DueDate == nil {
			continue
		}
		if instance.DueDate.After(now.Add(breachReminderLead)) {
			continue
		}

		fresh, err := t.claimReminder(ctx, "breach_deadline", instance.ID, now)
		if err != nil {
			return fmt.Errorf("failed to check reminder dedup state: %w", err)
		}
		if !fresh {
			continue
		}

		payload := map[string]any{
			"instance_id": instance.ID,
			"entity_type": instance.EntityType,
			"entity_id":   instance.EntityID,
			"due_date":    instance.DueDate.UTC().Format("2006-01-02 15:04:05"),
			"overdue":     instance.IsOverdue(now),
		}

		for _, dpo := range dpos {
			if err := t.notifications.Notify(ctx, dpo, models.TemplateBreachDeadline, payload); err != nil {
				return fmt.Errorf("failed to send breach deadline warning for instance %d: %w", instance.ID, err)
			}
		}
	}

	return nil
}

// GenerateReport produces one scheduled report, or every active one when the
// request does not name a report.
func (t *Tasks) GenerateReport(ctx context.Context, payload []byte) error {
	var request ReportRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &request); err != nil {
			return fmt.Errorf("invalid report request payload: %w", err)
		}
	}

	var reports []models.ScheduledReport
	if request.ReportID != nil {
		report, err := t.reports.FindByID(ctx, *request.ReportID)
		if err != nil {
			return fmt.Errorf("failed to load scheduled report %d: %w", *request.ReportID, err)
		}
		reports = append(reports, *report)
	} else {
		active, err := t.reports.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list active scheduled reports: %w", err)
		}
		reports = active
	}

	for i := range reports {
		if err := t.generateOne(ctx, &reports[i]); err != nil {
			return err
		}
	}

	return nil
}

func (t *Tasks) generateOne(ctx context.Context, report *models.ScheduledReport) error {
	now := t.now().UTC()

	openBreaches, err := t.incidents.ListOpenBreaches(ctx)
	if err != nil {
		return fmt.Errorf("failed to count open breaches: %w", err)
	}

	inProgress, err := t.workflows.ListInProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to count in-progress workflows: %w", err)
	}

	overdue := 0
	for _, instance := range inProgress {
		if instance.IsOverdue(now) {
			overdue++
		}
	}

	auditFilter := repository.AuditLogFilter{PageSize: 1, Page: 1}
	if report.LastRunAt != nil {
		auditFilter.Since = report.LastRunAt
	}
	_, auditCount, err := t.auditLogs.List(ctx, auditFilter)
	if err != nil {
		return fmt.Errorf("failed to count audit entries: %w", err)
	}

	payload := map[string]any{
		"report":            report.Name,
		"kind":              report.Kind,
		"open_breaches":     len(openBreaches),
		"active_workflows":  len(inProgress),
		"overdue_workflows": overdue,
		"audit_entries":     auditCount,
		"generated_at":      now.Format("2006-01-02 15:04:05"),
	}

	cisos, err := t.users.FindByRole(ctx, models.RoleCISO)
	if err != nil {
		return fmt.Errorf("failed to resolve report recipients: %w", err)
	}
	for _, ciso := range cisos {
		if err := t.notifications.Notify(ctx, ciso, models.TemplateComplianceReport, payload); err != nil {
			return fmt.Errorf("failed to deliver report %q: %w", report.Name, err)
		}
	}

	report.LastRunAt = &now
	if err := t.reports.Save(ctx, report); err != nil {
		return fmt.Errorf("failed to record report run: %w", err)
	}

	t.logger.Info().Str("report", report.Name).Int("recipients", len(cisos)).Msg("compliance report generated")
	return nil
}

// ExecuteReport runs one named scheduled report on demand. Unlike the
// recurring report task, the target must be named explicitly; inactive
// reports are eligible.
func (t *Tasks) ExecuteReport(ctx context.Context, payload []byte) error {
	var request ReportRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		return fmt.Errorf("invalid execute payload: %w", err)
	}
	if request.ReportID == nil {
		return errors.New("execute requires a report id")
	}
	return t.GenerateReport(ctx, payload)
}

// CleanupExpired enforces audit retention and sweeps orphaned session keys.
func (t *Tasks) CleanupExpired(ctx context.Context, _ []byte) error {
	cutoff := t.now().UTC().Add(-t.retention)

	deleted, err := t.auditLogs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune audit trail: %w", err)
	}

	swept, err := t.sweepSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep sessions: %w", err)
	}

	t.logger.Info().
		Int64("audit_entries_deleted", deleted).
		Int("sessions_swept", swept).
		Time("cutoff", cutoff).
		Msg("cleanup pass finished")
	return nil
}

// sweepSessions removes session keys that lost their expiry. Healthy
// sessions carry a TTL and expire on their own.
func (t *Tasks) sweepSessions(ctx context.Context) (int, error) {
	if t.redis == nil {
		return 0, nil
	}

	swept := 0
	iter := t.redis.Scan(ctx, 0, "isms:session:*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := t.redis.TTL(ctx, key).Result()
		if err != nil {
			return swept, err
		}
		if ttl == -1 {
			if err := t.redis.Del(ctx, key).Err(); err != nil {
				return swept, err
			}
			swept++
		}
	}
	if err := iter.Err(); err != nil {
		return swept, err
	}

	return swept, nil
}

// claimReminder atomically claims the (task, entity, day) reminder slot.
// It returns false when another run already sent this reminder today.
func (t *Tasks) claimReminder(ctx context.Context, task string, entityID uint, now time.Time) (bool, error) {
	if t.redis == nil {
		return true, nil
	}

	key := fmt.Sprintf("isms:dedup:%s:%d:%s", task, entityID, now.Format("2006-01-02"))
	return t.redis.SetNX(ctx, key, 1, reminderDedupTTL).Result()
}

func (t *Tasks) riskRecipients(ctx context.Context, risk models.Risk) ([]models.User, error) {
	if risk.OwnerID != nil {
		owner, err := t.users.FindByID(ctx, *risk.OwnerID)
		if err == nil {
			return []models.User{*owner}, nil
		}
		t.logger.Warn().Err(err).Uint("risk_id", risk.ID).Msg("risk owner not resolvable, falling back to risk managers")
	}

	managers, err := t.users.FindByRole(ctx, models.RoleRiskManager)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve risk managers: %w", err)
	}
	return managers, nil
}
