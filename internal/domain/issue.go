package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "OPEN"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
	IssueStatusClosed     IssueStatus = "CLOSED"
)

// AllIssueStatuses lists statuses in lifecycle order.
var AllIssueStatuses = []IssueStatus{
	IssueStatusOpen,
	IssueStatusInProgress,
	IssueStatusResolved,
	IssueStatusClosed,
}

// IsValid reports whether s is a known status.
func (s IssueStatus) IsValid() bool {
	for _, known := range AllIssueStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// WorkloadStatuses are the statuses in which an issue occupies its officer.
var WorkloadStatuses = []IssueStatus{IssueStatusOpen, IssueStatusInProgress}

// CountsAsWorkload reports whether an issue in status s occupies its officer.
func (s IssueStatus) CountsAsWorkload() bool {
	for _, status := range WorkloadStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// StatusStrings converts statuses for use as query arguments.
func StatusStrings(statuses []IssueStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Issue is a citizen-reported civic problem.
type Issue struct {
	ID              int64
	Title           string
	Description     string
	ImageURL        *string
	Address         string
	Landmark        *string
	Category        string
	Area            string
	Status          IssueStatus
	CitizenID       int64
	DepartmentID    *int64
	OfficerID       *int64
	SLADeadline     time.Time
	SLABreached     bool
	EscalationLevel int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOverdue reports whether the issue should be escalated at now.
func (i Issue) IsOverdue(now time.Time) bool {
	if i.SLABreached {
		return false
	}
	if i.Status == IssueStatusResolved || i.Status == IssueStatusClosed {
		return false
	}
	return i.SLADeadline.Before(now)
}

// IssuePatch holds the citizen-editable fields; nil leaves a field unchanged.
type IssuePatch struct {
	Description *string
	Address     *string
	Landmark    *string
	ImageURL    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p IssuePatch) IsEmpty() bool {
	return p.Description == nil && p.Address == nil && p.Landmark == nil && p.ImageURL == nil
}

// Apply copies the set fields onto issue.
func (p IssuePatch) Apply(issue *Issue) {
	if p.Description != nil {
		issue.Description = *p.Description
	}
	if p.Address != nil {
		issue.Address = *p.Address
	}
	if p.Landmark != nil {
		issue.Landmark = p.Landmark
	}
	if p.ImageURL != nil {
		issue.ImageURL = p.ImageURL
	}
}
