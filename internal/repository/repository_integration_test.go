//go:build integration

package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/persistence"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("civic"),
		postgres.WithUsername("civic"),
		postgres.WithPassword("civic"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres container: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection string: %v\n", err)
			return 1
		}
		testPool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open pool: %v\n", err)
			return 1
		}
		defer testPool.Close()

		if err := persistence.RunMigrations(ctx, testPool, zap.NewNop()); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
		return m.Run()
	}()
	os.Exit(code)
}

type seed struct {
	citizen *domain.User
	officer *domain.Officer
	dept    *domain.Department
}

// seedCity creates a citizen, a department with a 48h rule and one officer.
// Names are suffixed so tests can share the database.
func seedCity(t *testing.T, suffix string) seed {
	t.Helper()
	ctx := context.Background()
	users := NewUserRepository(testPool)

	citizen := &domain.User{Name: "Citizen", Email: "citizen-" + suffix + "@example.com", PasswordHash: "x", Role: domain.RoleCitizen}
	require.NoError(t, users.Create(ctx, citizen))
	officerUser := &domain.User{Name: "Officer", Email: "officer-" + suffix + "@example.com", PasswordHash: "x", Role: domain.RoleOfficer}
	require.NoError(t, users.Create(ctx, officerUser))

	hours := 48
	dept := &domain.Department{Name: "Water Supply " + suffix, SLAHours: &hours}
	require.NoError(t, NewDepartmentRepository(testPool).Create(ctx, dept))

	officer := &domain.Officer{UserID: officerUser.ID, DepartmentID: dept.ID, Area: "Sector 4", IsActive: true}
	require.NoError(t, NewOfficerRepository(testPool).Create(ctx, officer))

	return seed{citizen: citizen, officer: officer, dept: dept}
}

func newIssue(s seed, deadline time.Time) *domain.Issue {
	return &domain.Issue{
		Title:        "Burst pipe",
		Description:  "Water flooding the street",
		Address:      "4 Canal Road",
		Category:     s.dept.Name,
		Area:         "Sector 4",
		Status:       domain.IssueStatusOpen,
		CitizenID:    s.citizen.ID,
		DepartmentID: &s.dept.ID,
		OfficerID:    &s.officer.ID,
		SLADeadline:  deadline,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestDepartmentLookupIsCaseInsensitive(t *testing.T) {
	s := seedCity(t, "lookup")

	found, err := NewDepartmentRepository(testPool).FindByName(context.Background(), "WATER SUPPLY LOOKUP")
	require.NoError(t, err)
	assert.Equal(t, s.dept.ID, found.ID)
	require.NotNil(t, found.SLAHours)
	assert.Equal(t, 48, *found.SLAHours)

	_, err = NewDepartmentRepository(testPool).FindByName(context.Background(), "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTransitionStatusIsConditional(t *testing.T) {
	s := seedCity(t, "transition")
	ctx := context.Background()
	issues := NewIssueRepository(testPool)
	issue := newIssue(s, time.Now().Add(48*time.Hour))
	require.NoError(t, issues.Create(ctx, issue))

	updated, entry, err := issues.TransitionStatus(ctx, issue.ID, domain.IssueStatusOpen, domain.IssueStatusInProgress, s.officer.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusInProgress, updated.Status)
	assert.NotZero(t, entry.ID)

	_, _, err = issues.TransitionStatus(ctx, issue.ID, domain.IssueStatusOpen, domain.IssueStatusInProgress, s.officer.UserID)
	assert.ErrorIs(t, err, ErrStaleIssue)

	history, err := NewIssueHistoryRepository(testPool).ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.IssueStatusOpen, history[0].OldStatus)
	assert.Equal(t, domain.IssueStatusInProgress, history[0].NewStatus)

	load, err := NewOfficerRepository(testPool).CountOpenAssignments(ctx, s.officer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, load)

	issue.Description = "edited"
	assert.ErrorIs(t, issues.UpdateDetails(ctx, issue), ErrStaleIssue)
	assert.ErrorIs(t, issues.DeleteOpen(ctx, issue.ID), ErrStaleIssue)
}

func TestMarkBreachedOnlyOnce(t *testing.T) {
	s := seedCity(t, "breach")
	ctx := context.Background()
	issues := NewIssueRepository(testPool)
	issue := newIssue(s, time.Now().Add(-time.Hour))
	require.NoError(t, issues.Create(ctx, issue))

	candidates, err := issues.ListBreachCandidates(ctx, time.Now())
	require.NoError(t, err)
	assert.Contains(t, issueIDs(candidates), issue.ID)

	changed, err := issues.MarkBreached(ctx, issue.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = issues.MarkBreached(ctx, issue.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := issues.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.True(t, stored.SLABreached)
	assert.Equal(t, 1, stored.EscalationLevel)

	candidates, err = issues.ListBreachCandidates(ctx, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, issueIDs(candidates), issue.ID)
}

func TestDeleteOpenCascadesAndScopesList(t *testing.T) {
	s := seedCity(t, "delete")
	ctx := context.Background()
	issues := NewIssueRepository(testPool)
	first := newIssue(s, time.Now().Add(time.Hour))
	second := newIssue(s, time.Now().Add(time.Hour))
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, issues.Create(ctx, first))
	require.NoError(t, issues.Create(ctx, second))

	listed, err := issues.ListWithFilter(ctx, IssueFilter{Scope: IssueScope{CitizenID: &s.citizen.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{second.ID, first.ID}, issueIDs(listed))

	require.NoError(t, issues.DeleteOpen(ctx, first.ID))
	_, err = issues.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestNotificationsReadFlags(t *testing.T) {
	s := seedCity(t, "notify")
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &domain.Notification{
			UserID:  s.citizen.ID,
			Type:    domain.NotificationStatusChanged,
			Message: fmt.Sprintf("update %d", i),
		}))
	}
	items, err := repo.ListByUser(ctx, s.citizen.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "update 2", items[0].Message)

	require.NoError(t, repo.MarkRead(ctx, items[0].ID))
	changed, err := repo.MarkAllRead(ctx, s.citizen.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	assert.ErrorIs(t, repo.MarkRead(ctx, 987654), pgx.ErrNoRows)
}

func TestAnalyticsScopedToOfficer(t *testing.T) {
	s := seedCity(t, "analytics")
	ctx := context.Background()
	issues := NewIssueRepository(testPool)
	for i := 0; i < 2; i++ {
		require.NoError(t, issues.Create(ctx, newIssue(s, time.Now().Add(time.Hour))))
	}

	analytics := NewAnalyticsRepository(testPool)
	scope := IssueScope{OfficerID: &s.officer.ID}

	stats, err := analytics.StatusCounts(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(2), stats.Open)

	byArea, err := analytics.CountGrouped(ctx, scope, DimensionArea)
	require.NoError(t, err)
	assert.Equal(t, []domain.CountByKey{{Key: "Sector 4", Count: 2}}, byArea)

	daily, err := analytics.CountCreatedSince(ctx, scope, BucketDay, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	var total int64
	for _, bucket := range daily {
		total += bucket.Count
	}
	assert.Equal(t, int64(2), total)
}

func issueIDs(issues []domain.Issue) []int64 {
	ids := make([]int64, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	return ids
}
