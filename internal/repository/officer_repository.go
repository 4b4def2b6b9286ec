package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// OfficerRepository reads officer records and their live workload.
type OfficerRepository interface {
	Create(ctx context.Context, officer *domain.Officer) error
	GetByID(ctx context.Context, id int64) (*domain.Officer, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Officer, error)
	// ListActive returns active officers of a department ordered by id.
	// A nil area selects the whole department.
	ListActive(ctx context.Context, departmentID int64, area *string) ([]domain.Officer, error)
	// CountOpenAssignments counts issues in domain.WorkloadStatuses assigned to the officer.
	CountOpenAssignments(ctx context.Context, officerID int64) (int, error)
}

type officerRepository struct {
	pool *pgxpool.Pool
}

// NewOfficerRepository instantiates the repository.
func NewOfficerRepository(pool *pgxpool.Pool) OfficerRepository {
	return &officerRepository{pool: pool}
}

const officerColumns = `id, user_id, department_id, area, is_active, created_at, updated_at`

func (r *officerRepository) Create(ctx context.Context, officer *domain.Officer) error {
	const query = `
        INSERT INTO officers (user_id, department_id, area, is_active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		officer.UserID,
		officer.DepartmentID,
		officer.Area,
		officer.IsActive,
	).Scan(&officer.ID, &officer.CreatedAt, &officer.UpdatedAt)
}

func (r *officerRepository) GetByID(ctx context.Context, id int64) (*domain.Officer, error) {
	return r.fetchSingle(ctx, `SELECT `+officerColumns+` FROM officers WHERE id=$1`, id)
}

func (r *officerRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Officer, error) {
	return r.fetchSingle(ctx, `SELECT `+officerColumns+` FROM officers WHERE user_id=$1`, userID)
}

func (r *officerRepository) ListActive(ctx context.Context, departmentID int64, area *string) ([]domain.Officer, error) {
	query := `SELECT ` + officerColumns + ` FROM officers WHERE department_id=$1 AND is_active = TRUE`
	args := []any{departmentID}
	if area != nil {
		args = append(args, *area)
		query += ` AND area=$2`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Officer
	for rows.Next() {
		var officer domain.Officer
		if err := rows.Scan(
			&officer.ID,
			&officer.UserID,
			&officer.DepartmentID,
			&officer.Area,
			&officer.IsActive,
			&officer.CreatedAt,
			&officer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, officer)
	}
	return result, rows.Err()
}

func (r *officerRepository) CountOpenAssignments(ctx context.Context, officerID int64) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("issues").
		Where(sq.Eq{"officer_id": officerID}).
		Where(sq.Eq{"status": domain.StatusStrings(domain.WorkloadStatuses)}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *officerRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Officer, error) {
	var officer domain.Officer
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&officer.ID,
		&officer.UserID,
		&officer.DepartmentID,
		&officer.Area,
		&officer.IsActive,
		&officer.CreatedAt,
		&officer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &officer, nil
}
