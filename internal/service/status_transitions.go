package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

// allowedTransitions is the fixed lifecycle; CLOSED has no successors.
var allowedTransitions = map[domain.IssueStatus][]domain.IssueStatus{
	domain.IssueStatusOpen:       {domain.IssueStatusInProgress},
	domain.IssueStatusInProgress: {domain.IssueStatusResolved},
	domain.IssueStatusResolved:   {domain.IssueStatusClosed},
	domain.IssueStatusClosed:     {},
}

// CanTransition reports whether to directly follows from.
func CanTransition(from, to domain.IssueStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition advances an issue one step along the lifecycle on behalf of an
// officer or admin, recording history and telling the citizen.
func (s *IssueService) Transition(ctx context.Context, id int64, actor domain.Actor, target domain.IssueStatus) (*domain.Issue, error) {
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleOfficer && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only officers and admins may change issue status")
	}
	if !CanTransition(issue.Status, target) {
		return nil, apperrors.NewInvalidTransition(string(issue.Status), string(target))
	}

	updated, _, err := s.issues.TransitionStatus(ctx, id, issue.Status, target, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrStaleIssue) {
			current, loadErr := s.load(ctx, id)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, apperrors.NewInvalidTransition(string(current.Status), string(target))
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventIssueStatusChanged,
		IssueID: &updated.ID,
		ActorID: &actor.UserID,
		Payload: events.IssueStatusChangedPayload{
			OldStatus: issue.Status,
			NewStatus: updated.Status,
		},
	})

	notifyBestEffort(ctx, s.notifier, s.logger, updated.CitizenID, domain.NotificationStatusChanged,
		fmt.Sprintf("Your issue %q changed from %s to %s", updated.Title, issue.Status, updated.Status),
		&updated.ID)
	return updated, nil
}
