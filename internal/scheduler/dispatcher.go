// Package scheduler runs the recurring compliance tasks. Tasks are enqueued
// as JetStream messages and consumed through a queue group, so one task
// fires exactly one handler run per cluster even with multiple API nodes,
// and a failed run is redelivered.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/database"
	"github.com/noah-isme/isms-go-api/internal/observability"
)

// Task names double as JetStream subject suffixes under the task stream.
const (
	TaskCheckDueReviews = "check_due_reviews"
	TaskGenerateReport  = "generate_report"
	TaskCleanupExpired  = "cleanup_expired"
	TaskExecuteReport   = "execute_report"
)

const taskAckWait = 2 * time.Minute

// HandlerFunc processes one task message. A returned error negatively
// acknowledges the message for redelivery; scheduled-path failures surface
// instead of being absorbed.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Dispatcher routes task messages from the task stream to their handlers.
type Dispatcher struct {
	js         nats.JetStreamContext
	queueGroup string
	logger     zerolog.Logger
	handlers   map[string]HandlerFunc
	subs       []*nats.Subscription
}

// NewDispatcher constructs a task dispatcher on the given JetStream context.
func NewDispatcher(js nats.JetStreamContext, queueGroup string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		js:         js,
		queueGroup: queueGroup,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		handlers:   make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a task name. Registration must complete before
// Start.
func (d *Dispatcher) Register(task string, handler HandlerFunc) {
	d.handlers[task] = handler
}

// Start subscribes every registered handler to its task subject.
func (d *Dispatcher) Start(ctx context.Context) error {
	for task, handler := range d.handlers {
		subject := database.TaskSubjectPrefix + "." + task

		sub, err := d.js.QueueSubscribe(subject, d.queueGroup, d.consume(ctx, task, handler),
			nats.ManualAck(),
			nats.AckWait(taskAckWait),
		)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}

		d.subs = append(d.subs, sub)
		d.logger.Info().Str("task", task).Str("subject", subject).Msg("task handler subscribed")
	}

	return nil
}

// Stop drains all task subscriptions.
func (d *Dispatcher) Stop() {
	for _, sub := range d.subs {
		if err := sub.Drain(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to drain task subscription")
		}
	}
}

// Enqueue publishes a task message onto the stream.
func (d *Dispatcher) Enqueue(ctx context.Context, task string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	subject := database.TaskSubjectPrefix + "." + task
	if _, err := d.js.Publish(subject, encoded, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", task, err)
	}

	return nil
}

func (d *Dispatcher) consume(ctx context.Context, task string, handler HandlerFunc) nats.MsgHandler {
	return func(msg *nats.Msg) {
		start := time.Now()
		d.logger.Info().Str("task", task).Msg("task run started")

		err := handler(ctx, msg.Data)
		duration := time.Since(start)
		observability.ScheduledTaskDuration().WithLabelValues(task).Observe(duration.Seconds())

		if err != nil {
			observability.ScheduledTaskRuns().WithLabelValues(task, "error").Inc()
			d.logger.Error().Err(err).Str("task", task).Dur("duration", duration).Msg("task run failed")
			if nakErr := msg.Nak(); nakErr != nil {
				d.logger.Warn().Err(nakErr).Str("task", task).Msg("failed to nak task message")
			}
			return
		}

		observability.ScheduledTaskRuns().WithLabelValues(task, "success").Inc()
		d.logger.Info().Str("task", task).Dur("duration", duration).Msg("task run completed")
		if ackErr := msg.Ack(); ackErr != nil {
			d.logger.Warn().Err(ackErr).Str("task", task).Msg("failed to ack task message")
		}
	}
}
