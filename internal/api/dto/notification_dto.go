package dto

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// NotificationResponse is the JSON view of a notification.
type NotificationResponse struct {
	ID        int64                   `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	IssueID   *int64                  `json:"issue_id"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		IssueID:   n.IssueID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// NewNotificationResponses maps a slice of notifications.
func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for i := range items {
		out = append(out, NewNotificationResponse(&items[i]))
	}
	return out
}
