package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// DepartmentRepository reads departments and their SLA rules.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id int64) (*domain.Department, error)
	// FindByName matches name case-insensitively; pgx.ErrNoRows when absent.
	FindByName(ctx context.Context, name string) (*domain.Department, error)
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

const departmentSelect = `
        SELECT d.id, d.name, d.description, s.hours, d.created_at, d.updated_at
        FROM departments d
        LEFT JOIN sla_rules s ON s.department_id = d.id`

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            INSERT INTO departments (name, description)
            VALUES ($1,$2)
            RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, query, dept.Name, dept.Description).
			Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return err
		}
		if dept.SLAHours == nil {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO sla_rules (department_id, hours) VALUES ($1,$2)`, dept.ID, *dept.SLAHours)
		return err
	})
}

func (r *departmentRepository) GetByID(ctx context.Context, id int64) (*domain.Department, error) {
	return r.fetchSingle(ctx, departmentSelect+` WHERE d.id=$1`, id)
}

func (r *departmentRepository) FindByName(ctx context.Context, name string) (*domain.Department, error) {
	return r.fetchSingle(ctx, departmentSelect+` WHERE LOWER(d.name)=LOWER($1) ORDER BY d.id LIMIT 1`, name)
}

func (r *departmentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Department, error) {
	var dept domain.Department
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&dept.ID,
		&dept.Name,
		&dept.Description,
		&dept.SLAHours,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}
