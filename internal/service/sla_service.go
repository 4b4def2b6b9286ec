package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/repository"
)

// SweepResult summarises one SLA sweep.
type SweepResult struct {
	Candidates int `json:"candidates"`
	Escalated  int `json:"escalated"`
	// Skipped counts issues another sweep, a transition or a delete got to first.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SLAService escalates issues whose SLA deadline passed without resolution.
type SLAService struct {
	issues      repository.IssueRepository
	officers    repository.OfficerRepository
	notifier    Notifier
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// SLADependencies bundles collaborators for the sweep.
type SLADependencies struct {
	IssueRepo   repository.IssueRepository
	OfficerRepo repository.OfficerRepository
	Notifier    Notifier
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Concurrency int
	Now         func() time.Time
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SLAService{
		issues:      deps.IssueRepo,
		officers:    deps.OfficerRepo,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		concurrency: concurrency,
		now:         now,
	}
}

// RunSweep escalates every overdue, unbreached, unresolved issue. A failure on
// one issue is logged and counted; the rest of the sweep continues. Only a
// failure to select candidates is returned.
func (s *SLAService) RunSweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	candidates, err := s.issues.ListBreachCandidates(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list breach candidates: %w", err)
	}

	var (
		mu     sync.Mutex
		result = SweepResult{Candidates: len(candidates)}
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, candidate := range candidates {
		issueID := candidate.ID
		g.Go(func() error {
			escalated, err := s.Escalate(ctx, issueID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				s.logger.Warn("sla escalation failed", zap.Int64("issue_id", issueID), zap.Error(err))
			case escalated:
				result.Escalated++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("sla sweep finished",
		zap.Int("candidates", result.Candidates),
		zap.Int("escalated", result.Escalated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Escalate marks one issue breached and bumps its escalation level, unless it
// was already breached, resolved, closed or deleted. It reports whether this
// call performed the escalation.
func (s *SLAService) Escalate(ctx context.Context, issueID int64) (bool, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if !issue.IsOverdue(s.now()) {
		return false, nil
	}

	changed, err := s.issues.MarkBreached(ctx, issueID)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	level := issue.EscalationLevel + 1

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventIssueEscalated,
			IssueID:   &issue.ID,
			Timestamp: s.now(),
			Payload: events.IssueEscalatedPayload{
				EscalationLevel: level,
				OfficerID:       issue.OfficerID,
				SLADeadline:     issue.SLADeadline,
			},
		})
	}

	if issue.OfficerID != nil {
		s.notifyOfficer(ctx, issue, *issue.OfficerID, level)
	}
	return true, nil
}

func (s *SLAService) notifyOfficer(ctx context.Context, issue *domain.Issue, officerID int64, level int) {
	officer, err := s.officers.GetByID(ctx, officerID)
	if err != nil {
		s.logger.Warn("notification delivery failed",
			zap.Int64("issue_id", issue.ID),
			zap.Int64("officer_id", officerID),
			zap.String("notification_type", string(domain.NotificationSLABreach)),
			zap.Error(err))
		return
	}
	notifyBestEffort(ctx, s.notifier, s.logger, officer.UserID, domain.NotificationSLABreach,
		fmt.Sprintf("SLA breached for issue #%d %q (escalation level %d)", issue.ID, issue.Title, level),
		&issue.ID)
}
