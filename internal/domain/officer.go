package domain

import "time"

// Officer is a field worker belonging to one department and one area.
type Officer struct {
	ID           int64
	UserID       int64
	DepartmentID int64
	Area         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
