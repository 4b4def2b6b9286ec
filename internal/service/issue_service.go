package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

// IssueService owns the issue lifecycle: creation, scoped reads, citizen edits
// and status transitions.
type IssueService struct {
	issues          repository.IssueRepository
	history         repository.IssueHistoryRepository
	officers        repository.OfficerRepository
	resolver        *AssignmentService
	notifier        Notifier
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	defaultSLAHours int
	now             func() time.Time
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo       repository.IssueRepository
	HistoryRepo     repository.IssueHistoryRepository
	OfficerRepo     repository.OfficerRepository
	Resolver        *AssignmentService
	Notifier        Notifier
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	DefaultSLAHours int
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// IssueCreateInput describes a citizen report.
type IssueCreateInput struct {
	Title       string
	Description string
	ImageURL    *string
	Address     string
	Landmark    *string
	Category    string
	Area        string
}

// IssueListFilter narrows a listing further than the caller's role scope.
type IssueListFilter struct {
	Statuses []domain.IssueStatus
	Limit    int
	Offset   int
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	hours := deps.DefaultSLAHours
	if hours <= 0 {
		hours = 72
	}
	return &IssueService{
		issues:          deps.IssueRepo,
		history:         deps.HistoryRepo,
		officers:        deps.OfficerRepo,
		resolver:        deps.Resolver,
		notifier:        deps.Notifier,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		defaultSLAHours: hours,
		now:             now,
	}
}

// Create routes the report, stamps its SLA deadline and stores it as OPEN.
// An unknown category fails with DEPARTMENT_NOT_FOUND and stores nothing.
func (s *IssueService) Create(ctx context.Context, citizenID int64, input IssueCreateInput) (*domain.Issue, error) {
	dept, officer, err := s.resolver.Resolve(ctx, input.Category, input.Area)
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	issue := &domain.Issue{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		ImageURL:     input.ImageURL,
		Address:      strings.TrimSpace(input.Address),
		Landmark:     input.Landmark,
		Category:     strings.TrimSpace(input.Category),
		Area:         strings.TrimSpace(input.Area),
		Status:       domain.IssueStatusOpen,
		CitizenID:    citizenID,
		DepartmentID: &dept.ID,
		SLADeadline:  dept.SLADeadline(createdAt, s.defaultSLAHours),
		CreatedAt:    createdAt,
	}
	if officer != nil {
		issue.OfficerID = &officer.ID
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventIssueCreated,
		IssueID: &issue.ID,
		ActorID: &citizenID,
		Payload: events.IssueCreatedPayload{
			DepartmentID: issue.DepartmentID,
			OfficerID:    issue.OfficerID,
			Category:     issue.Category,
			Area:         issue.Area,
			SLADeadline:  issue.SLADeadline,
		},
	})

	if officer != nil {
		notifyBestEffort(ctx, s.notifier, s.logger, officer.UserID, domain.NotificationIssueAssigned,
			fmt.Sprintf("New issue assigned to you: %s", issue.Title), &issue.ID)
	}
	return issue, nil
}

// ListForUser returns the issues visible to actor, newest first.
func (s *IssueService) ListForUser(ctx context.Context, actor domain.Actor, filter IssueListFilter) ([]domain.Issue, error) {
	scope, visible, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !visible {
		return []domain.Issue{}, nil
	}
	issues, err := s.issues.ListWithFilter(ctx, repository.IssueFilter{
		Scope:    scope,
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return issues, nil
}

// Get fetches one issue if actor may see it.
func (s *IssueService) Get(ctx context.Context, id int64, actor domain.Actor) (*domain.Issue, error) {
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, issue, actor); err != nil {
		return nil, err
	}
	return issue, nil
}

// History returns the status changes of an issue in the order they happened.
func (s *IssueService) History(ctx context.Context, id int64, actor domain.Actor) ([]domain.IssueStatusHistory, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByIssue(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.IssueStatusHistory{}
	}
	return entries, nil
}

// Update applies a citizen's edit to their own OPEN issue. Status and SLA fields never change.
func (s *IssueService) Update(ctx context.Context, id, userID int64, patch domain.IssuePatch) (*domain.Issue, error) {
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwnerEdit(issue, userID); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return issue, nil
	}

	patch.Apply(issue)
	if err := s.issues.UpdateDetails(ctx, issue); err != nil {
		if errors.Is(err, repository.ErrStaleIssue) {
			return nil, s.staleOwnerEdit(ctx, id)
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

// Delete removes a citizen's own OPEN issue together with its history.
func (s *IssueService) Delete(ctx context.Context, id, userID int64) error {
	issue, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeOwnerEdit(issue, userID); err != nil {
		return err
	}
	if err := s.issues.DeleteOpen(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleIssue) {
			return s.staleOwnerEdit(ctx, id)
		}
		return apperrors.MapError(err)
	}
	return nil
}

func authorizeOwnerEdit(issue *domain.Issue, userID int64) error {
	if issue.CitizenID != userID {
		return apperrors.NewForbidden("only the reporting citizen may modify this issue")
	}
	if issue.Status != domain.IssueStatusOpen {
		return apperrors.NewNotEditable(string(issue.Status))
	}
	return nil
}

// staleOwnerEdit explains why a conditional edit matched nothing.
func (s *IssueService) staleOwnerEdit(ctx context.Context, id int64) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewNotEditable(string(current.Status))
}

func (s *IssueService) load(ctx context.Context, id int64) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

func (s *IssueService) authorizeRead(ctx context.Context, issue *domain.Issue, actor domain.Actor) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleCitizen:
		if issue.CitizenID == actor.UserID {
			return nil
		}
	case domain.RoleOfficer:
		officer, err := s.officerFor(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if officer != nil && issue.OfficerID != nil && *issue.OfficerID == officer.ID {
			return nil
		}
	}
	return apperrors.NewForbidden("access denied")
}

// scopeFor maps a role to a listing scope. visible is false when the caller can
// see nothing at all (an officer without an officer record).
func (s *IssueService) scopeFor(ctx context.Context, actor domain.Actor) (repository.IssueScope, bool, error) {
	return issueScopeFor(ctx, s.officers, actor)
}

func issueScopeFor(ctx context.Context, officers repository.OfficerRepository, actor domain.Actor) (scope repository.IssueScope, visible bool, err error) {
	switch actor.Role {
	case domain.RoleAdmin:
		return repository.IssueScope{}, true, nil
	case domain.RoleCitizen:
		userID := actor.UserID
		return repository.IssueScope{CitizenID: &userID}, true, nil
	case domain.RoleOfficer:
		officer, err := officerForUser(ctx, officers, actor.UserID)
		if err != nil {
			return repository.IssueScope{}, false, err
		}
		if officer == nil {
			return repository.IssueScope{}, false, nil
		}
		officerID := officer.ID
		return repository.IssueScope{OfficerID: &officerID}, true, nil
	}
	return repository.IssueScope{}, false, apperrors.NewForbidden("unknown role")
}

func (s *IssueService) officerFor(ctx context.Context, userID int64) (*domain.Officer, error) {
	return officerForUser(ctx, s.officers, userID)
}

func officerForUser(ctx context.Context, officers repository.OfficerRepository, userID int64) (*domain.Officer, error) {
	officer, err := officers.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return officer, nil
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
