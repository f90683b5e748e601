package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestRepository reads service-request activity data for the calculators.
// All window parameters are half-open on nothing: start and end are both
// inclusive, and an all-time window passes the zero time as start.
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new RequestRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RequestRepository: repository instance bound to db.
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// CreatedInWindow retrieves a department's requests created inside the window.
func (r *RequestRepository) CreatedInWindow(ctx context.Context, departmentID uuid.UUID, start, end time.Time) ([]domain.ServiceRequest, error) {
	var requests []domain.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("department_id = ? AND created_at >= ? AND created_at <= ?", departmentID, start, end).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to query created requests: %w", err)
	}
	return requests, nil
}

// ClosedInWindow retrieves a department's requests closed inside the window.
func (r *RequestRepository) ClosedInWindow(ctx context.Context, departmentID uuid.UUID, start, end time.Time) ([]domain.ServiceRequest, error) {
	var requests []domain.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("department_id = ? AND closed_at IS NOT NULL AND closed_at >= ? AND closed_at <= ?", departmentID, start, end).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to query closed requests: %w", err)
	}
	return requests, nil
}

// AssignmentCounts returns the number of assignment rows per request.
// Requests with no assignments are absent from the map.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - requestIDs: requests to count assignments for.
// Returns:
//   - map[uuid.UUID]int64: assignment count keyed by request ID.
//   - error: non-nil if the query fails.
func (r *RequestRepository) AssignmentCounts(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(requestIDs))
	if len(requestIDs) == 0 {
		return counts, nil
	}

	type row struct {
		RequestID uuid.UUID
		Total     int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&domain.Assignment{}).
		Select("request_id, COUNT(*) AS total").
		Where("request_id IN ?", requestIDs).
		Group("request_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	for _, row := range rows {
		counts[row.RequestID] = row.Total
	}
	return counts, nil
}

// CountByCategory groups a department's in-window requests by category.
func (r *RequestRepository) CountByCategory(ctx context.Context, departmentID uuid.UUID, start, end time.Time) (map[string]int64, error) {
	type row struct {
		Category string
		Total    int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Select("category, COUNT(*) AS total").
		Where("department_id = ? AND created_at >= ? AND created_at <= ?", departmentID, start, end).
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	breakdown := make(map[string]int64, len(rows))
	for _, row := range rows {
		breakdown[row.Category] = row.Total
	}
	return breakdown, nil
}

// CountByPriority groups a department's in-window requests by priority.
func (r *RequestRepository) CountByPriority(ctx context.Context, departmentID uuid.UUID, start, end time.Time) (map[domain.Priority]int64, error) {
	type row struct {
		Priority domain.Priority
		Total    int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Select("priority, COUNT(*) AS total").
		Where("department_id = ? AND created_at >= ? AND created_at <= ?", departmentID, start, end).
		Group("priority").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count by priority: %w", err)
	}
	breakdown := make(map[domain.Priority]int64, len(rows))
	for _, row := range rows {
		breakdown[row.Priority] = row.Total
	}
	return breakdown, nil
}

// ActiveAssignedTo retrieves the non-terminal requests currently assigned to
// a staff member.
func (r *RequestRepository) ActiveAssignedTo(ctx context.Context, assigneeID uuid.UUID) ([]domain.ServiceRequest, error) {
	var requests []domain.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("assignee_id = ? AND status NOT IN ?", assigneeID, domain.TerminalStatuses()).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to query active assignments: %w", err)
	}
	return requests, nil
}

// CompletedAssignedTo retrieves the terminal-status requests assigned to a
// staff member.
func (r *RequestRepository) CompletedAssignedTo(ctx context.Context, assigneeID uuid.UUID) ([]domain.ServiceRequest, error) {
	var requests []domain.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("assignee_id = ? AND status IN ?", assigneeID, domain.TerminalStatuses()).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to query completed assignments: %w", err)
	}
	return requests, nil
}

// SubmittedInWindow retrieves the requests a user created inside the window.
func (r *RequestRepository) SubmittedInWindow(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]domain.ServiceRequest, error) {
	var requests []domain.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("submitter_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to query submitted requests: %w", err)
	}
	return requests, nil
}

// CountCommentsBy counts a user's comments posted inside the window.
func (r *RequestRepository) CountCommentsBy(ctx context.Context, userID uuid.UUID, start, end time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("author_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

// CountUpvotesReceived counts in-window upvotes on requests the user submitted.
func (r *RequestRepository) CountUpvotesReceived(ctx context.Context, userID uuid.UUID, start, end time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Upvote{}).
		Joins("JOIN service_requests ON service_requests.id = upvotes.request_id").
		Where("service_requests.submitter_id = ? AND upvotes.created_at >= ? AND upvotes.created_at <= ?", userID, start, end).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count upvotes received: %w", err)
	}
	return count, nil
}

// CountUpvotesGiven counts the upvotes a user cast inside the window.
func (r *RequestRepository) CountUpvotesGiven(ctx context.Context, userID uuid.UUID, start, end time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Upvote{}).
		Where("voter_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count upvotes given: %w", err)
	}
	return count, nil
}

// SubmitterCount is one row of a per-submitter request count rollup.
type SubmitterCount struct {
	SubmitterID uuid.UUID
	Total       int64
}

// TopSubmittersByCategory counts in-window requests per submitter for one
// category, most active first.
func (r *RequestRepository) TopSubmittersByCategory(ctx context.Context, category string, start, end time.Time, limit int) ([]SubmitterCount, error) {
	var rows []SubmitterCount
	if err := r.db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Select("submitter_id, COUNT(*) AS total").
		Where("category = ? AND created_at >= ? AND created_at <= ?", category, start, end).
		Group("submitter_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count submitters by category: %w", err)
	}
	return rows, nil
}
