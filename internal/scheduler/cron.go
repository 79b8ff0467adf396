package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Default enqueue cadences for the recurring tasks.
const (
	reviewCheckInterval = time.Hour
	reportInterval      = 24 * time.Hour
	cleanupInterval     = 24 * time.Hour
)

// Cron periodically enqueues the recurring tasks. Enqueueing is separate
// from execution: every node runs a Cron, but the work-queue stream delivers
// each message to a single handler in the queue group, and failed enqueues
// simply wait for the next tick.
type Cron struct {
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewCron constructs the periodic task enqueuer.
func NewCron(dispatcher *Dispatcher, logger zerolog.Logger) *Cron {
	return &Cron{
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "scheduler_cron").Logger(),
	}
}

// Start launches the tick loops. They stop when the context is cancelled.
func (c *Cron) Start(ctx context.Context) {
	go c.loop(ctx, TaskCheckDueReviews, reviewCheckInterval, nil)
	go c.loop(ctx, TaskGenerateReport, reportInterval, ReportRequest{})
	go c.loop(ctx, TaskCleanupExpired, cleanupInterval, nil)
}

func (c *Cron) loop(ctx context.Context, task string, interval time.Duration, payload any) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.dispatcher.Enqueue(ctx, task, payload); err != nil {
				c.logger.Warn().Err(err).Str("task", task).Msg("failed to enqueue scheduled task")
			}
		}
	}
}
