package domain

import "time"

// Department is the administrative unit a category of issues is routed to.
type Department struct {
	ID          int64
	Name        string
	Description string
	// SLAHours is nil when the department has no SLA rule.
	SLAHours  *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SLADeadline returns the deadline for an issue created at createdAt.
func (d Department) SLADeadline(createdAt time.Time, defaultHours int) time.Time {
	hours := defaultHours
	if d.SLAHours != nil && *d.SLAHours > 0 {
		hours = *d.SLAHours
	}
	return createdAt.Add(time.Duration(hours) * time.Hour)
}
