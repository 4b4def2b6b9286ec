package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// IssueScope restricts queries to what a caller may see. An empty scope sees everything.
type IssueScope struct {
	CitizenID *int64
	OfficerID *int64
}

func (s IssueScope) sqlizer(alias string) sq.Sqlizer {
	eq := sq.Eq{}
	if s.CitizenID != nil {
		eq[alias+"citizen_id"] = *s.CitizenID
	}
	if s.OfficerID != nil {
		eq[alias+"officer_id"] = *s.OfficerID
	}
	if len(eq) == 0 {
		return nil
	}
	return eq
}

// IssueFilter captures listing parameters.
type IssueFilter struct {
	Scope    IssueScope
	Statuses []domain.IssueStatus
	Limit    int
	Offset   int
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id int64) (*domain.Issue, error)
	// ListWithFilter orders by creation time, newest first.
	ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	// UpdateDetails writes the citizen-editable fields while the issue is still OPEN.
	UpdateDetails(ctx context.Context, issue *domain.Issue) error
	// DeleteOpen removes an OPEN issue and its history.
	DeleteOpen(ctx context.Context, id int64) error
	// TransitionStatus moves the issue from one status to another and appends the
	// history row atomically. ErrStaleIssue when the issue is no longer in from.
	TransitionStatus(ctx context.Context, id int64, from, to domain.IssueStatus, changedBy int64) (*domain.Issue, *domain.IssueStatusHistory, error)
	// ListBreachCandidates returns unbreached, unresolved issues whose deadline is before now.
	ListBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error)
	// MarkBreached flags the breach and bumps the escalation level only if the issue
	// is still unbreached and unresolved. The bool reports whether a row changed.
	MarkBreached(ctx context.Context, id int64) (bool, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

var issueColumns = []string{
	"id", "title", "description", "image_url", "address", "landmark", "category", "area",
	"status", "citizen_id", "department_id", "officer_id", "sla_deadline", "sla_breached",
	"escalation_level", "created_at", "updated_at",
}

const issueReturning = `
        RETURNING id, title, description, image_url, address, landmark, category, area,
                  status, citizen_id, department_id, officer_id, sla_deadline, sla_breached,
                  escalation_level, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (title, description, image_url, address, landmark, category, area,
                            status, citizen_id, department_id, officer_id, sla_deadline,
                            sla_breached, escalation_level, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.ImageURL,
		issue.Address,
		issue.Landmark,
		issue.Category,
		issue.Area,
		issue.Status,
		issue.CitizenID,
		issue.DepartmentID,
		issue.OfficerID,
		issue.SLADeadline,
		issue.SLABreached,
		issue.EscalationLevel,
		issue.CreatedAt,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	query, args, err := psql.Select(issueColumns...).From("issues").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanIssue(r.pool.QueryRow(ctx, query, args...))
}

func (r *issueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	builder := psql.Select(issueColumns...).From("issues")
	if scope := filter.Scope.sqlizer(""); scope != nil {
		builder = builder.Where(scope)
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": domain.StatusStrings(filter.Statuses)})
	}
	builder = builder.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) UpdateDetails(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET description=$1, address=$2, landmark=$3, image_url=$4, updated_at=NOW()
        WHERE id=$5 AND status='OPEN'
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		issue.Description,
		issue.Address,
		issue.Landmark,
		issue.ImageURL,
		issue.ID,
	).Scan(&issue.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleIssue
	}
	return err
}

func (r *issueRepository) DeleteOpen(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM issues WHERE id=$1 AND status='OPEN'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleIssue
	}
	return nil
}

func (r *issueRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.IssueStatus, changedBy int64) (*domain.Issue, *domain.IssueStatusHistory, error) {
	var (
		updated *domain.Issue
		entry   *domain.IssueStatusHistory
	)
	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		issue, err := scanIssue(tx.QueryRow(ctx, `
            UPDATE issues SET status=$1, updated_at=NOW()
            WHERE id=$2 AND status=$3`+issueReturning, to, id, from))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleIssue
		}
		if err != nil {
			return err
		}
		record := &domain.IssueStatusHistory{
			IssueID:   id,
			OldStatus: from,
			NewStatus: to,
			ChangedBy: changedBy,
		}
		if err := insertHistory(ctx, tx, record); err != nil {
			return err
		}
		updated, entry = issue, record
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, entry, nil
}

func (r *issueRepository) ListBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error) {
	query, args, err := psql.Select(issueColumns...).From("issues").
		Where(sq.Lt{"sla_deadline": now}).
		Where(sq.Eq{"sla_breached": false}).
		Where(sq.NotEq{"status": []string{string(domain.IssueStatusResolved), string(domain.IssueStatusClosed)}}).
		OrderBy("sla_deadline ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) MarkBreached(ctx context.Context, id int64) (bool, error) {
	const query = `
        UPDATE issues SET sla_breached=TRUE, escalation_level=escalation_level+1
        WHERE id=$1 AND sla_breached=FALSE AND status NOT IN ('RESOLVED','CLOSED')`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.ImageURL,
		&issue.Address,
		&issue.Landmark,
		&issue.Category,
		&issue.Area,
		&issue.Status,
		&issue.CitizenID,
		&issue.DepartmentID,
		&issue.OfficerID,
		&issue.SLADeadline,
		&issue.SLABreached,
		&issue.EscalationLevel,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}
