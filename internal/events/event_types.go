package events

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated        EventType = "issue_created"
	EventIssueStatusChanged  EventType = "issue_status_changed"
	EventIssueEscalated      EventType = "issue_escalated"
	EventNotificationCreated EventType = "notification_created"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   *int64      `json:"issue_id,omitempty"`
	ActorID   *int64      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	DepartmentID *int64    `json:"department_id,omitempty"`
	OfficerID    *int64    `json:"officer_id,omitempty"`
	Category     string    `json:"category"`
	Area         string    `json:"area"`
	SLADeadline  time.Time `json:"sla_deadline"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
}

// IssueEscalatedPayload payload.
type IssueEscalatedPayload struct {
	EscalationLevel int       `json:"escalation_level"`
	OfficerID       *int64    `json:"officer_id,omitempty"`
	SLADeadline     time.Time `json:"sla_deadline"`
}

// NotificationCreatedPayload payload.
type NotificationCreatedPayload struct {
	NotificationID int64                   `json:"notification_id"`
	UserID         int64                   `json:"user_id"`
	Type           domain.NotificationType `json:"type"`
	Message        string                  `json:"message"`
}
