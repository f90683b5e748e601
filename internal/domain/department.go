package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole separates citizens from department staff.
type UserRole string

const (
	RoleCitizen UserRole = "citizen"
	RoleStaff   UserRole = "staff"
	RoleAdmin   UserRole = "admin"
)

// Department is a municipal service department that owns service requests.
type Department struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Code      string    `gorm:"type:text;uniqueIndex:idx_departments_code" json:"code"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Department.
func (Department) TableName() string {
	return "departments"
}

// User is a platform account: a citizen submitting requests or a staff
// member handling them. Staff carry a department reference.
type User struct {
	ID           uuid.UUID  `gorm:"type:text;primaryKey" json:"id"`
	Name         string     `gorm:"type:text;not null" json:"name"`
	Email        string     `gorm:"type:text;uniqueIndex:idx_users_email" json:"email"`
	Role         UserRole   `gorm:"type:text;index:idx_users_role;default:citizen" json:"role"`
	DepartmentID *uuid.UUID `gorm:"type:text;index:idx_users_department" json:"department_id,omitempty"`
	Active       bool       `gorm:"default:true" json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}
