package dto

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Address     string  `json:"address" validate:"required"`
	Landmark    *string `json:"landmark" validate:"omitempty,max=200"`
	Category    string  `json:"category" validate:"required"`
	Area        string  `json:"area" validate:"required"`
}

// UpdateIssueRequest payload; omitted fields stay unchanged.
type UpdateIssueRequest struct {
	Description *string `json:"description" validate:"omitempty,min=1"`
	Address     *string `json:"address" validate:"omitempty,min=1"`
	Landmark    *string `json:"landmark" validate:"omitempty,max=200"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

// Patch converts the request to a domain patch.
func (r UpdateIssueRequest) Patch() domain.IssuePatch {
	return domain.IssuePatch{
		Description: r.Description,
		Address:     r.Address,
		Landmark:    r.Landmark,
		ImageURL:    r.ImageURL,
	}
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.IssueStatus `json:"status" validate:"required"`
}

// IssueResponse is the JSON view of an issue.
type IssueResponse struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	ImageURL        *string            `json:"image_url"`
	Address         string             `json:"address"`
	Landmark        *string            `json:"landmark"`
	Category        string             `json:"category"`
	Area            string             `json:"area"`
	Status          domain.IssueStatus `json:"status"`
	CitizenID       int64              `json:"citizen_id"`
	DepartmentID    *int64             `json:"department_id"`
	OfficerID       *int64             `json:"officer_id"`
	SLADeadline     time.Time          `json:"sla_deadline"`
	SLABreached     bool               `json:"sla_breached"`
	EscalationLevel int                `json:"escalation_level"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// HistoryResponse is one status change.
type HistoryResponse struct {
	ID        int64              `json:"id"`
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	ChangedBy int64              `json:"changed_by"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewIssueResponse maps an issue.
func NewIssueResponse(issue *domain.Issue) IssueResponse {
	return IssueResponse{
		ID:              issue.ID,
		Title:           issue.Title,
		Description:     issue.Description,
		ImageURL:        issue.ImageURL,
		Address:         issue.Address,
		Landmark:        issue.Landmark,
		Category:        issue.Category,
		Area:            issue.Area,
		Status:          issue.Status,
		CitizenID:       issue.CitizenID,
		DepartmentID:    issue.DepartmentID,
		OfficerID:       issue.OfficerID,
		SLADeadline:     issue.SLADeadline,
		SLABreached:     issue.SLABreached,
		EscalationLevel: issue.EscalationLevel,
		CreatedAt:       issue.CreatedAt,
		UpdatedAt:       issue.UpdatedAt,
	}
}

// NewIssueResponses maps a slice of issues.
func NewIssueResponses(issues []domain.Issue) []IssueResponse {
	items := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		items = append(items, NewIssueResponse(&issues[i]))
	}
	return items
}

// NewHistoryResponses maps history rows.
func NewHistoryResponses(entries []domain.IssueStatusHistory) []HistoryResponse {
	items := make([]HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, HistoryResponse{
			ID:        entry.ID,
			OldStatus: entry.OldStatus,
			NewStatus: entry.NewStatus,
			ChangedBy: entry.ChangedBy,
			CreatedAt: entry.CreatedAt,
		})
	}
	return items
}
