package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricRepository persists department metric snapshots.
type MetricRepository struct {
	db *gorm.DB
}

// NewMetricRepository creates a new MetricRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *MetricRepository: repository instance bound to db.
func NewMetricRepository(db *gorm.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

// UpsertBatch writes one run's snapshots inside a single transaction.
// A failure on any snapshot rolls back the whole batch so a partial run
// never reaches the store.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - snapshots: snapshots keyed by (department, metric, period, period_start).
// Returns:
//   - error: non-nil if validation or any upsert fails; nothing is written.
func (r *MetricRepository) UpsertBatch(ctx context.Context, snapshots []domain.MetricSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range snapshots {
			snap := &snapshots[i]
			if !snap.MetricType.Valid() {
				return fmt.Errorf("snapshot %s/%s: %w", snap.DepartmentID, snap.MetricType, domain.ErrUnknownMetricType)
			}
			if snap.ID == uuid.Nil {
				snap.ID = uuid.New()
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "department_id"},
					{Name: "metric_type"},
					{Name: "period_type"},
					{Name: "period_start"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"value", "period_end", "calculated_at"}),
			}).Create(snap).Error; err != nil {
				return fmt.Errorf("failed to upsert metric snapshot: %w", err)
			}
		}
		return nil
	})
}

// Series retrieves one metric's snapshots for a department over a date range,
// oldest first.
func (r *MetricRepository) Series(ctx context.Context, departmentID uuid.UUID, metric domain.MetricType, period domain.PeriodType, from, to time.Time) ([]domain.MetricSnapshot, error) {
	var snapshots []domain.MetricSnapshot
	if err := r.db.WithContext(ctx).
		Where("department_id = ? AND metric_type = ? AND period_type = ? AND period_start >= ? AND period_start <= ?",
			departmentID, metric, period, from, to).
		Order("period_start ASC").
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to query metric series: %w", err)
	}
	return snapshots, nil
}

// LatestForDepartment retrieves the most recent snapshot per metric type for
// one department and period.
func (r *MetricRepository) LatestForDepartment(ctx context.Context, departmentID uuid.UUID, period domain.PeriodType) ([]domain.MetricSnapshot, error) {
	var snapshots []domain.MetricSnapshot
	if err := r.db.WithContext(ctx).
		Where("department_id = ? AND period_type = ?", departmentID, period).
		Order("period_start DESC").
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to query latest metrics: %w", err)
	}

	latest := make([]domain.MetricSnapshot, 0, len(domain.MetricTypes()))
	seen := make(map[domain.MetricType]bool, len(domain.MetricTypes()))
	for _, snap := range snapshots {
		if seen[snap.MetricType] {
			continue
		}
		seen[snap.MetricType] = true
		latest = append(latest, snap)
	}
	return latest, nil
}

// Count returns the total number of stored metric snapshots.
func (r *MetricRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.MetricSnapshot{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count metric snapshots: %w", err)
	}
	return count, nil
}
