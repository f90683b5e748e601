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

// CommunityRepository persists community stats snapshots and their ranks.
type CommunityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository creates a new CommunityRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CommunityRepository: repository instance bound to db.
func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// Upsert creates or updates a snapshot keyed by (user, period, period_start).
// Rank columns are deliberately left out of the conflict update: the rank
// recomputation pass owns them, and previous_rank must still hold the value
// from before this write when that pass stashes it.
func (r *CommunityRepository) Upsert(ctx context.Context, snap *domain.CommunityStatsSnapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "period_type"},
			{Name: "period_start"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_end",
			"requests_submitted", "requests_approved", "requests_resolved",
			"comments_posted", "upvotes_received", "upvotes_given",
			"approval_rate", "resolution_rate", "satisfaction_score",
			"contribution_score", "engagement_score", "quality_score", "overall_score",
			"calculated_at",
		}),
	}).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to upsert community snapshot: %w", err)
	}
	return nil
}

// GetByKey retrieves the snapshot for one (user, period, period_start) key.
func (r *CommunityRepository) GetByKey(ctx context.Context, userID uuid.UUID, period domain.PeriodType, periodStart time.Time) (*domain.CommunityStatsSnapshot, error) {
	var snap domain.CommunityStatsSnapshot
	if err := r.db.WithContext(ctx).
		First(&snap, "user_id = ? AND period_type = ? AND period_start = ?", userID, period, periodStart).Error; err != nil {
		return nil, fmt.Errorf("failed to get community snapshot: %w", err)
	}
	return &snap, nil
}

// ListByPeriodStart retrieves every snapshot sharing one (period, period_start)
// key, ordered by overall score descending. This is the rank recomputation
// population.
func (r *CommunityRepository) ListByPeriodStart(ctx context.Context, period domain.PeriodType, periodStart time.Time) ([]domain.CommunityStatsSnapshot, error) {
	var snapshots []domain.CommunityStatsSnapshot
	if err := r.db.WithContext(ctx).
		Where("period_type = ? AND period_start = ?", period, periodStart).
		Order("overall_score DESC").
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots for period: %w", err)
	}
	return snapshots, nil
}

// UpdateRanks writes rank and previous_rank for a whole population inside a
// single transaction; any failure rolls back every rank change.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - snapshots: snapshots carrying their new Rank and PreviousRank values.
// Returns:
//   - error: non-nil if any update fails; no ranks are changed.
func (r *CommunityRepository) UpdateRanks(ctx context.Context, snapshots []domain.CommunityStatsSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range snapshots {
			snap := &snapshots[i]
			if err := tx.Model(&domain.CommunityStatsSnapshot{}).
				Where("id = ?", snap.ID).
				Updates(map[string]interface{}{
					"rank":          snap.Rank,
					"previous_rank": snap.PreviousRank,
				}).Error; err != nil {
				return fmt.Errorf("failed to update rank for snapshot %s: %w", snap.ID, err)
			}
		}
		return nil
	})
}

// LeaderboardFilters narrows the leaderboard population.
type LeaderboardFilters struct {
	MinRequests     int     // minimum requests submitted in the window
	MinOverallScore float64 // minimum overall score
}

// Leaderboard retrieves a page of snapshots for one period label ordered by
// overall score descending. Filtering matches the period label only, not the
// exact period start: batch runs do not produce identical timestamps within
// a nominal period.
func (r *CommunityRepository) Leaderboard(ctx context.Context, period domain.PeriodType, limit, offset int, filters LeaderboardFilters) ([]domain.CommunityStatsSnapshot, error) {
	query := r.db.WithContext(ctx).
		Where("period_type = ?", period)
	if filters.MinRequests > 0 {
		query = query.Where("requests_submitted >= ?", filters.MinRequests)
	}
	if filters.MinOverallScore > 0 {
		query = query.Where("overall_score >= ?", filters.MinOverallScore)
	}

	var snapshots []domain.CommunityStatsSnapshot
	if err := query.
		Order("overall_score DESC").
		Limit(limit).
		Offset(offset).
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return snapshots, nil
}

// History retrieves a user's snapshots for one period label, newest first.
func (r *CommunityRepository) History(ctx context.Context, userID uuid.UUID, period domain.PeriodType, limit int) ([]domain.CommunityStatsSnapshot, error) {
	var snapshots []domain.CommunityStatsSnapshot
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND period_type = ?", userID, period).
		Order("period_start DESC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to query user history: %w", err)
	}
	return snapshots, nil
}

// LatestForUsers retrieves the most recent snapshot per user for one period
// label.
func (r *CommunityRepository) LatestForUsers(ctx context.Context, userIDs []uuid.UUID, period domain.PeriodType) (map[uuid.UUID]domain.CommunityStatsSnapshot, error) {
	latest := make(map[uuid.UUID]domain.CommunityStatsSnapshot, len(userIDs))
	if len(userIDs) == 0 {
		return latest, nil
	}
	var snapshots []domain.CommunityStatsSnapshot
	if err := r.db.WithContext(ctx).
		Where("user_id IN ? AND period_type = ?", userIDs, period).
		Order("period_start DESC").
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to query snapshots for users: %w", err)
	}
	for _, snap := range snapshots {
		if _, ok := latest[snap.UserID]; !ok {
			latest[snap.UserID] = snap
		}
	}
	return latest, nil
}

// Summary aggregates the whole snapshot population of one period label.
func (r *CommunityRepository) Summary(ctx context.Context, period domain.PeriodType) (*domain.StatsSummary, error) {
	type row struct {
		Participants    int64
		TotalSubmitted  int64
		TotalResolved   int64
		TotalComments   int64
		TotalUpvotes    int64
		AvgOverallScore float64
		TopOverallScore float64
	}
	var agg row
	if err := r.db.WithContext(ctx).
		Model(&domain.CommunityStatsSnapshot{}).
		Select(`COUNT(*) AS participants,
			COALESCE(SUM(requests_submitted), 0) AS total_submitted,
			COALESCE(SUM(requests_resolved), 0) AS total_resolved,
			COALESCE(SUM(comments_posted), 0) AS total_comments,
			COALESCE(SUM(upvotes_received), 0) AS total_upvotes,
			COALESCE(AVG(overall_score), 0) AS avg_overall_score,
			COALESCE(MAX(overall_score), 0) AS top_overall_score`).
		Where("period_type = ?", period).
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate stats summary: %w", err)
	}
	return &domain.StatsSummary{
		PeriodType:          period,
		Participants:        agg.Participants,
		TotalSubmitted:      agg.TotalSubmitted,
		TotalResolved:       agg.TotalResolved,
		TotalComments:       agg.TotalComments,
		TotalUpvotes:        agg.TotalUpvotes,
		AverageOverallScore: agg.AvgOverallScore,
		TopOverallScore:     agg.TopOverallScore,
	}, nil
}
