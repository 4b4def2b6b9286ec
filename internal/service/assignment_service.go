package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

// AssignmentService routes a reported category and area to a department and officer.
// Workload is read live and never reserved, so two concurrent creations may pick
// the same officer.
type AssignmentService struct {
	departments repository.DepartmentRepository
	officers    repository.OfficerRepository
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	DepartmentRepo repository.DepartmentRepository
	OfficerRepo    repository.OfficerRepository
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		departments: deps.DepartmentRepo,
		officers:    deps.OfficerRepo,
	}
}

// Resolve returns the department matching category and, when one is active, the
// least-loaded officer, preferring officers in area. Ties go to the lowest officer id.
// The officer is nil when the department has no active officers. Both inputs are
// trimmed the same way Create trims what it stores.
func (s *AssignmentService) Resolve(ctx context.Context, category, area string) (*domain.Department, *domain.Officer, error) {
	category = strings.TrimSpace(category)
	area = strings.TrimSpace(area)
	dept, err := s.departments.FindByName(ctx, category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewDepartmentNotFound(category)
		}
		return nil, nil, apperrors.MapError(err)
	}

	officer, err := s.leastLoaded(ctx, dept.ID, &area)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if officer == nil {
		officer, err = s.leastLoaded(ctx, dept.ID, nil)
		if err != nil {
			return nil, nil, apperrors.MapError(err)
		}
	}
	return dept, officer, nil
}

func (s *AssignmentService) leastLoaded(ctx context.Context, departmentID int64, area *string) (*domain.Officer, error) {
	candidates, err := s.officers.ListActive(ctx, departmentID, area)
	if err != nil {
		return nil, err
	}

	var (
		best     *domain.Officer
		bestLoad int
	)
	for i := range candidates {
		candidate := &candidates[i]
		load, err := s.officers.CountOpenAssignments(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if best == nil || load < bestLoad || (load == bestLoad && candidate.ID < best.ID) {
			best, bestLoad = candidate, load
		}
	}
	return best, nil
}
