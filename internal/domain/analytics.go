package domain

// IssueStats summarises issue counts per status.
type IssueStats struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"in_progress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
	Breached   int64 `json:"breached"`
}

// CountByKey is one bucket of a grouped count.
type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ChartData holds the daily and monthly creation series, oldest first.
type ChartData struct {
	Daily   []CountByKey `json:"daily"`
	Monthly []CountByKey `json:"monthly"`
}

// IssueAnalytics holds grouped counts and resolution speed.
type IssueAnalytics struct {
	ByArea                 []CountByKey `json:"by_area"`
	ByDepartment           []CountByKey `json:"by_department"`
	ByCategory             []CountByKey `json:"by_category"`
	ByOfficer              []CountByKey `json:"by_officer"`
	AverageResolutionHours float64      `json:"average_resolution_hours"`
}
