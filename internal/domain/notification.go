package domain

import "time"

// NotificationType enumerates notification kinds.
type NotificationType string

const (
	NotificationIssueAssigned NotificationType = "ISSUE_ASSIGNED"
	NotificationStatusChanged NotificationType = "STATUS_CHANGED"
	NotificationSLABreach     NotificationType = "SLA_BREACH"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID        int64
	UserID    int64
	Type      NotificationType
	Message   string
	IssueID   *int64
	Read      bool
	CreatedAt time.Time
}
