package dto

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// NotificationResponse is one queued notification as served to clients.
type NotificationResponse struct {
	ID           uint           `json:"id"`
	RecipientID  uint           `json:"recipient_id"`
	TemplateKind string         `json:"template_kind"`
	Message      string         `json:"message"`
	Payload      map[string]any `json:"payload,omitempty"`
	ReadAt       *time.Time     `json:"read_at"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewNotificationResponse maps a notification to its response shape.
func NewNotificationResponse(notification models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           notification.ID,
		RecipientID:  notification.RecipientID,
		TemplateKind: notification.TemplateKind,
		Message:      notification.Message,
		Payload:      notification.Payload,
		ReadAt:       notification.ReadAt,
		CreatedAt:    notification.CreatedAt,
	}
}

// NewNotificationResponseSlice maps notifications to response shapes.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, NewNotificationResponse(notification))
	}
	return responses
}
