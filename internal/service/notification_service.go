package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
)

const notificationChannel = "isms:notifications"

// NotificationService queues governance notifications for recipients. It is
// the delivery backend of the workflow engine and the scheduled tasks;
// transport failures are absorbed after the notification row is persisted.
type NotificationService interface {
	Notify(ctx context.Context, recipient models.User, templateKind string, payload map[string]any) error
	List(ctx context.Context, recipientID uint, limit, offset int) ([]dto.NotificationResponse, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	redis     *redis.Client
	nats      *nats.Conn
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

type notificationEvent struct {
	RecipientID  uint           `json:"recipient_id"`
	TemplateKind string         `json:"template_kind"`
	Message      string         `json:"message"`
	Payload      map[string]any `json:"payload,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}

// NewNotificationService constructs the notification service. The redis and
// NATS connections are optional; without them notifications are persisted
// only.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:      repo,
		redis:     redisClient,
		nats:      natsConn,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *notificationService) Notify(ctx context.Context, recipient models.User, templateKind string, payload map[string]any) error {
	message := strings.TrimSpace(s.sanitizer.Sanitize(renderMessage(templateKind, payload)))
	if message == "" {
		message = "You have a new compliance notification."
	}

	notification := models.Notification{
		RecipientID:  recipient.ID,
		TemplateKind: templateKind,
		Message:      message,
		Payload:      payload,
	}

	if err := s.repo.Create(ctx, &notification); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	s.fanOut(ctx, notificationEvent{
		RecipientID:  recipient.ID,
		TemplateKind: templateKind,
		Message:      message,
		Payload:      payload,
		SentAt:       time.Now().UTC(),
	})

	return nil
}

func (s *notificationService) List(ctx context.Context, recipientID uint, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByRecipient(ctx, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

// fanOut pushes the event to the live channels. The notification row is
// already committed, so broker failures only cost immediacy.
func (s *notificationService) fanOut(ctx context.Context, event notificationEvent) {
	encoded, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode notification event")
		return
	}

	if s.redis != nil {
		if err := s.redis.Publish(ctx, notificationChannel, encoded).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish notification to redis")
		}
	}

	if s.nats != nil {
		if err := s.nats.Publish(strings.ReplaceAll(notificationChannel, ":", "."), encoded); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish notification to nats")
		}
	}
}

func renderMessage(templateKind string, payload map[string]any) string {
	stepName, _ := payload["step_name"].(string)
	entityType, _ := payload["entity_type"].(string)

	switch templateKind {
	case models.TemplateWorkflowAssigned:
		return fmt.Sprintf("Approval step %q on %s is waiting for your decision.", stepName, entityType)
	case models.TemplateWorkflowStep:
		return fmt.Sprintf("Workflow step %q on %s has been processed.", stepName, entityType)
	case models.TemplateBreachDeadline:
		due, _ := payload["due_date"].(string)
		return fmt.Sprintf("Data breach notification for %s is due by %s.", entityType, due)
	case models.TemplateReviewReminder:
		title, _ := payload["title"].(string)
		return fmt.Sprintf("Risk %q is due for review.", title)
	case models.TemplateComplianceReport:
		name, _ := payload["report"].(string)
		return fmt.Sprintf("Compliance report %q has been generated.", name)
	case models.TemplateIncidentEscalated:
		return fmt.Sprintf("An incident on %s has been escalated.", entityType)
	default:
		return "You have a new compliance notification."
	}
}
