package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DepartmentRepository handles department and staff lookups.
type DepartmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository creates a new DepartmentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DepartmentRepository: repository instance bound to db.
func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// GetByID retrieves a department by its ID.
// Returns domain.ErrDepartmentNotFound when no row matches.
func (r *DepartmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	var dept domain.Department
	if err := r.db.WithContext(ctx).First(&dept, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &dept, nil
}

// ListActive retrieves every active department, ordered by name.
func (r *DepartmentRepository) ListActive(ctx context.Context) ([]domain.Department, error) {
	var depts []domain.Department
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&depts).Error; err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return depts, nil
}

// Staff retrieves the active staff members of a department.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - departmentID: department whose staff to list.
// Returns:
//   - []domain.User: active staff users.
//   - error: non-nil if the query fails.
func (r *DepartmentRepository) Staff(ctx context.Context, departmentID uuid.UUID) ([]domain.User, error) {
	var staff []domain.User
	if err := r.db.WithContext(ctx).
		Where("department_id = ? AND role = ? AND active = ?", departmentID, domain.RoleStaff, true).
		Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("failed to list department staff: %w", err)
	}
	return staff, nil
}

// UserRepository handles user lookups for the community calculator.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID.
// Returns domain.ErrUserNotFound when no row matches.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListActive retrieves every active user.
func (r *UserRepository) ListActive(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetByIDs retrieves users by a list of IDs.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var users []domain.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	return users, nil
}
