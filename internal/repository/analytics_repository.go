package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// Dimension names a column issues can be grouped by.
type Dimension string

const (
	DimensionArea       Dimension = "area"
	DimensionCategory   Dimension = "category"
	DimensionDepartment Dimension = "department"
	DimensionOfficer    Dimension = "officer"
)

// Bucket names the date_trunc unit used for time series.
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketMonth Bucket = "month"
)

const unassignedLabel = "Unassigned"

// AnalyticsRepository computes read-only aggregates over issues.
type AnalyticsRepository interface {
	StatusCounts(ctx context.Context, scope IssueScope) (*domain.IssueStats, error)
	// CountCreatedSince buckets issues created at or after since (UTC). Empty buckets are omitted.
	CountCreatedSince(ctx context.Context, scope IssueScope, bucket Bucket, since time.Time) ([]domain.CountByKey, error)
	CountGrouped(ctx context.Context, scope IssueScope, dimension Dimension) ([]domain.CountByKey, error)
	AverageResolutionHours(ctx context.Context, scope IssueScope) (float64, error)
}

type analyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository builds repository.
func NewAnalyticsRepository(pool *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepository{pool: pool}
}

func applyScope(b sq.SelectBuilder, scope IssueScope) sq.SelectBuilder {
	if cond := scope.sqlizer("i."); cond != nil {
		return b.Where(cond)
	}
	return b
}

func (r *analyticsRepository) StatusCounts(ctx context.Context, scope IssueScope) (*domain.IssueStats, error) {
	builder := psql.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE i.status = 'OPEN')",
		"COUNT(*) FILTER (WHERE i.status = 'IN_PROGRESS')",
		"COUNT(*) FILTER (WHERE i.status = 'RESOLVED')",
		"COUNT(*) FILTER (WHERE i.status = 'CLOSED')",
		"COUNT(*) FILTER (WHERE i.sla_breached)",
	).From("issues i")
	query, args, err := applyScope(builder, scope).ToSql()
	if err != nil {
		return nil, err
	}

	stats := &domain.IssueStats{}
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Open,
		&stats.InProgress,
		&stats.Resolved,
		&stats.Closed,
		&stats.Breached,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *analyticsRepository) CountCreatedSince(ctx context.Context, scope IssueScope, bucket Bucket, since time.Time) ([]domain.CountByKey, error) {
	var format string
	switch bucket {
	case BucketDay:
		format = "YYYY-MM-DD"
	case BucketMonth:
		format = "YYYY-MM"
	default:
		return nil, fmt.Errorf("unsupported bucket %q", bucket)
	}
	key := fmt.Sprintf("to_char(date_trunc('%s', i.created_at AT TIME ZONE 'UTC'), '%s')", bucket, format)

	builder := psql.Select(key+" AS bucket", "COUNT(*)").
		From("issues i").
		Where(sq.GtOrEq{"i.created_at": since}).
		GroupBy("bucket").
		OrderBy("bucket ASC")
	query, args, err := applyScope(builder, scope).ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryCounts(ctx, query, args)
}

func (r *analyticsRepository) CountGrouped(ctx context.Context, scope IssueScope, dimension Dimension) ([]domain.CountByKey, error) {
	var builder sq.SelectBuilder
	switch dimension {
	case DimensionArea:
		builder = psql.Select("i.area", "COUNT(*)").From("issues i").GroupBy("i.area")
	case DimensionCategory:
		builder = psql.Select("i.category", "COUNT(*)").From("issues i").GroupBy("i.category")
	case DimensionDepartment:
		builder = psql.Select(fmt.Sprintf("COALESCE(d.name, '%s')", unassignedLabel), "COUNT(*)").
			From("issues i").
			LeftJoin("departments d ON d.id = i.department_id").
			GroupBy("d.id", "d.name")
	case DimensionOfficer:
		builder = psql.Select(fmt.Sprintf("COALESCE(u.name, '%s')", unassignedLabel), "COUNT(*)").
			From("issues i").
			LeftJoin("officers o ON o.id = i.officer_id").
			LeftJoin("users u ON u.id = o.user_id").
			GroupBy("o.id", "u.name")
	default:
		return nil, fmt.Errorf("unsupported dimension %q", dimension)
	}
	builder = applyScope(builder, scope).OrderBy("2 DESC", "1 ASC")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryCounts(ctx, query, args)
}

func (r *analyticsRepository) AverageResolutionHours(ctx context.Context, scope IssueScope) (float64, error) {
	builder := psql.Select("COALESCE(AVG(EXTRACT(EPOCH FROM (i.updated_at - i.created_at)) / 3600.0), 0)").
		From("issues i").
		Where(sq.Eq{"i.status": string(domain.IssueStatusResolved)})
	query, args, err := applyScope(builder, scope).ToSql()
	if err != nil {
		return 0, err
	}
	var hours float64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&hours); err != nil {
		return 0, err
	}
	return hours, nil
}

func (r *analyticsRepository) queryCounts(ctx context.Context, query string, args []any) ([]domain.CountByKey, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.CountByKey, 0)
	for rows.Next() {
		var item domain.CountByKey
		if err := rows.Scan(&item.Key, &item.Count); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
