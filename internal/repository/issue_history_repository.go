package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// IssueHistoryRepository reads the status audit trail. Rows are only written
// by IssueRepository.TransitionStatus.
type IssueHistoryRepository interface {
	ListByIssue(ctx context.Context, issueID int64) ([]domain.IssueStatusHistory, error)
}

type issueHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewIssueHistoryRepository builds repository.
func NewIssueHistoryRepository(pool *pgxpool.Pool) IssueHistoryRepository {
	return &issueHistoryRepository{pool: pool}
}

func insertHistory(ctx context.Context, q querier, history *domain.IssueStatusHistory) error {
	const query = `
        INSERT INTO issue_status_history (issue_id, old_status, new_status, changed_by)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return q.QueryRow(ctx, query,
		history.IssueID,
		history.OldStatus,
		history.NewStatus,
		history.ChangedBy,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *issueHistoryRepository) ListByIssue(ctx context.Context, issueID int64) ([]domain.IssueStatusHistory, error) {
	const query = `
        SELECT id, issue_id, old_status, new_status, changed_by, created_at
        FROM issue_status_history WHERE issue_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueStatusHistory
	for rows.Next() {
		var history domain.IssueStatusHistory
		if err := rows.Scan(
			&history.ID,
			&history.IssueID,
			&history.OldStatus,
			&history.NewStatus,
			&history.ChangedBy,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
