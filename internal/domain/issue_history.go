package domain

import "time"

// IssueStatusHistory is an immutable audit entry for one status change.
type IssueStatusHistory struct {
	ID        int64
	IssueID   int64
	OldStatus IssueStatus
	NewStatus IssueStatus
	ChangedBy int64
	CreatedAt time.Time
}
