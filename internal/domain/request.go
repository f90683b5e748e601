package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a service request. Status
// transition legality is enforced by the request-handling side of the
// platform; the engine only reads the resulting state.
type RequestStatus string

const (
	StatusSubmitted   RequestStatus = "submitted"
	StatusUnderReview RequestStatus = "under_review"
	StatusApproved    RequestStatus = "approved"
	StatusInProgress  RequestStatus = "in_progress"
	StatusResolved    RequestStatus = "resolved"
	StatusClosed      RequestStatus = "closed"
	StatusRejected    RequestStatus = "rejected"
)

// Terminal reports whether the status ends a request's lifecycle.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusResolved, StatusClosed, StatusRejected:
		return true
	}
	return false
}

// ApprovedStatuses is the approved-like status set used by the community
// calculator: any state a request can only reach after approval.
func ApprovedStatuses() []RequestStatus {
	return []RequestStatus{StatusApproved, StatusInProgress, StatusResolved, StatusClosed}
}

// ResolvedStatuses is the terminal-resolved set (rejected does not count).
func ResolvedStatuses() []RequestStatus {
	return []RequestStatus{StatusResolved, StatusClosed}
}

// TerminalStatuses lists every lifecycle-ending status.
func TerminalStatuses() []RequestStatus {
	return []RequestStatus{StatusResolved, StatusClosed, StatusRejected}
}

// Priority is the urgency classification of a service request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Weight maps a priority to its workload-score weight.
// Unknown priorities fall back to the medium weight.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// ServiceRequest is a citizen-submitted request routed to a department.
// AssigneeID is the current handler; the assignments table keeps the full
// handoff history used for first-call-resolution and escalation metrics.
type ServiceRequest struct {
	ID                 uuid.UUID     `gorm:"type:text;primaryKey" json:"id"`
	Title              string        `gorm:"type:text;not null" json:"title"`
	Category           string        `gorm:"type:text;index:idx_requests_category" json:"category"`
	Priority           Priority      `gorm:"type:text;default:medium" json:"priority"`
	Status             RequestStatus `gorm:"type:text;index:idx_requests_status;default:submitted" json:"status"`
	DepartmentID       uuid.UUID     `gorm:"type:text;not null;index:idx_requests_department" json:"department_id"`
	SubmitterID        uuid.UUID     `gorm:"type:text;not null;index:idx_requests_submitter" json:"submitter_id"`
	AssigneeID         *uuid.UUID    `gorm:"type:text;index:idx_requests_assignee" json:"assignee_id,omitempty"`
	SatisfactionRating *int          `json:"satisfaction_rating,omitempty"` // 1-5, set by the submitter after closure
	DueAt              *time.Time    `json:"due_at,omitempty"`
	ClosedAt           *time.Time    `gorm:"index:idx_requests_closed_at" json:"closed_at,omitempty"`
	CreatedAt          time.Time     `gorm:"index:idx_requests_created_at" json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName returns the database table name for ServiceRequest.
func (ServiceRequest) TableName() string {
	return "service_requests"
}

// ResolutionHours returns the creation-to-closure duration in hours,
// or 0 if the request is still open.
func (r *ServiceRequest) ResolutionHours() float64 {
	if r.ClosedAt == nil {
		return 0
	}
	return r.ClosedAt.Sub(r.CreatedAt).Hours()
}

// Assignment is one handoff of a request to a staff member. A request with
// more than one assignment row counts as escalated.
type Assignment struct {
	ID         uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	RequestID  uuid.UUID `gorm:"type:text;not null;index:idx_assignments_request" json:"request_id"`
	AssigneeID uuid.UUID `gorm:"type:text;not null;index:idx_assignments_assignee" json:"assignee_id"`
	AssignedAt time.Time `json:"assigned_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Assignment.
func (Assignment) TableName() string {
	return "assignments"
}
