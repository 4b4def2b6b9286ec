package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/report"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

const (
	chartDays   = 7
	chartMonths = 6
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// AnalyticsService computes read-only summaries scoped to the caller's role.
type AnalyticsService struct {
	analytics repository.AnalyticsRepository
	issues    repository.IssueRepository
	officers  repository.OfficerRepository
	cache     repository.CacheRepository
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// AnalyticsDependencies bundles collaborators.
type AnalyticsDependencies struct {
	AnalyticsRepo repository.AnalyticsRepository
	IssueRepo     repository.IssueRepository
	OfficerRepo   repository.OfficerRepository
	// Cache is optional; admin summaries are cached for CacheTTL when set.
	Cache    repository.CacheRepository
	CacheTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AnalyticsService{
		analytics: deps.AnalyticsRepo,
		issues:    deps.IssueRepo,
		officers:  deps.OfficerRepo,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		logger:    logger,
		now:       now,
	}
}

// Stats counts the caller's visible issues per status.
func (s *AnalyticsService) Stats(ctx context.Context, actor domain.Actor) (*domain.IssueStats, error) {
	scope, visible, err := issueScopeFor(ctx, s.officers, actor)
	if err != nil {
		return nil, err
	}
	if !visible {
		return &domain.IssueStats{}, nil
	}

	stats := &domain.IssueStats{}
	err = s.cached(ctx, actor, "analytics:stats", stats, func() error {
		computed, err := s.analytics.StatusCounts(ctx, scope)
		if err != nil {
			return err
		}
		*stats = *computed
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// ChartData returns issues created per day over the last week and per month
// over the last half year, zero-filled and oldest first.
func (s *AnalyticsService) ChartData(ctx context.Context, actor domain.Actor) (*domain.ChartData, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	firstDay := today.AddDate(0, 0, -(chartDays - 1))
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(chartMonths - 1), 0)

	dailyKeys := make([]string, 0, chartDays)
	for i := 0; i < chartDays; i++ {
		dailyKeys = append(dailyKeys, firstDay.AddDate(0, 0, i).Format(dayLayout))
	}
	monthlyKeys := make([]string, 0, chartMonths)
	for i := 0; i < chartMonths; i++ {
		monthlyKeys = append(monthlyKeys, firstMonth.AddDate(0, i, 0).Format(monthLayout))
	}

	scope, visible, err := issueScopeFor(ctx, s.officers, actor)
	if err != nil {
		return nil, err
	}
	if !visible {
		return &domain.ChartData{Daily: zeroFill(dailyKeys, nil), Monthly: zeroFill(monthlyKeys, nil)}, nil
	}

	chart := &domain.ChartData{}
	err = s.cached(ctx, actor, "analytics:chart:"+today.Format(dayLayout), chart, func() error {
		daily, err := s.analytics.CountCreatedSince(ctx, scope, repository.BucketDay, firstDay)
		if err != nil {
			return err
		}
		monthly, err := s.analytics.CountCreatedSince(ctx, scope, repository.BucketMonth, firstMonth)
		if err != nil {
			return err
		}
		chart.Daily = zeroFill(dailyKeys, daily)
		chart.Monthly = zeroFill(monthlyKeys, monthly)
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return chart, nil
}

// AnalyticsData groups the caller's visible issues by area, department,
// category and officer, and averages resolution time over RESOLVED issues.
func (s *AnalyticsService) AnalyticsData(ctx context.Context, actor domain.Actor) (*domain.IssueAnalytics, error) {
	scope, visible, err := issueScopeFor(ctx, s.officers, actor)
	if err != nil {
		return nil, err
	}
	empty := &domain.IssueAnalytics{
		ByArea:       []domain.CountByKey{},
		ByDepartment: []domain.CountByKey{},
		ByCategory:   []domain.CountByKey{},
		ByOfficer:    []domain.CountByKey{},
	}
	if !visible {
		return empty, nil
	}

	result := empty
	err = s.cached(ctx, actor, "analytics:breakdown", result, func() error {
		groups := []struct {
			dimension repository.Dimension
			target    *[]domain.CountByKey
		}{
			{repository.DimensionArea, &result.ByArea},
			{repository.DimensionDepartment, &result.ByDepartment},
			{repository.DimensionCategory, &result.ByCategory},
			{repository.DimensionOfficer, &result.ByOfficer},
		}
		for _, group := range groups {
			counts, err := s.analytics.CountGrouped(ctx, scope, group.dimension)
			if err != nil {
				return err
			}
			if counts != nil {
				*group.target = counts
			}
		}
		hours, err := s.analytics.AverageResolutionHours(ctx, scope)
		if err != nil {
			return err
		}
		result.AverageResolutionHours = hours
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// ExportIssues renders every issue as an xlsx workbook. Admin only.
func (s *AnalyticsService) ExportIssues(ctx context.Context, actor domain.Actor) ([]byte, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("export requires admin role")
	}
	issues, err := s.issues.ListWithFilter(ctx, repository.IssueFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	data, err := report.IssuesWorkbook(issues)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return data, nil
}

// cached serves admin summaries from the cache when possible and stores fresh
// ones. Other roles, and any cache error, fall through to compute.
func (s *AnalyticsService) cached(ctx context.Context, actor domain.Actor, key string, dest any, compute func() error) error {
	if s.cache == nil || s.cacheTTL <= 0 || actor.Role != domain.RoleAdmin {
		return compute()
	}

	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
	case !errors.Is(err, repository.ErrCacheMiss):
		s.logger.Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
	}

	if err := compute(); err != nil {
		return err
	}
	encoded, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := s.cache.Set(ctx, key, encoded, s.cacheTTL); err != nil {
		s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func zeroFill(keys []string, counts []domain.CountByKey) []domain.CountByKey {
	byKey := make(map[string]int64, len(counts))
	for _, c := range counts {
		byKey[c.Key] = c.Count
	}
	filled := make([]domain.CountByKey, 0, len(keys))
	for _, key := range keys {
		filled = append(filled, domain.CountByKey{Key: key, Count: byKey[key]})
	}
	return filled
}
