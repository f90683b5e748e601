package service

import (
	"context"
	"fmt"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

// LeaderboardService is the read-only projection layer over stored
// snapshots: leaderboard pages, per-user history, category rollups, trend
// series and population summaries. It never writes.
type LeaderboardService struct {
	communityRepo *repository.CommunityRepository
	userRepo      *repository.UserRepository
	requestRepo   *repository.RequestRepository
	metricRepo    *repository.MetricRepository
	deptRepo      *repository.DepartmentRepository
	logger        *logger.Logger
	clock         Clock
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(
	communityRepo *repository.CommunityRepository,
	userRepo *repository.UserRepository,
	requestRepo *repository.RequestRepository,
	metricRepo *repository.MetricRepository,
	deptRepo *repository.DepartmentRepository,
	log *logger.Logger,
	clock Clock,
) *LeaderboardService {
	if clock == nil {
		clock = time.Now
	}
	return &LeaderboardService{
		communityRepo: communityRepo,
		userRepo:      userRepo,
		requestRepo:   requestRepo,
		metricRepo:    metricRepo,
		deptRepo:      deptRepo,
		logger:        log,
		clock:         clock,
	}
}

// GetLeaderboard returns a page of entries ordered by overall score
// descending. Each entry carries the persisted rank as the canonical value;
// Position is the page-local offset+index+1 the legacy read path reported,
// kept separate because the two can disagree between recomputations.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - period: period label to filter by (label only, not period start).
//   - limit: page size; 0 uses the default, values above the cap are clamped.
//   - offset: number of entries to skip.
//   - filters: optional population filters.
// Returns:
//   - []domain.LeaderboardEntry: ordered page of entries.
//   - error: non-nil if the query fails.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, period domain.PeriodType, limit, offset int, filters repository.LeaderboardFilters) ([]domain.LeaderboardEntry, error) {
	if !period.ValidForCommunity() {
		return nil, fmt.Errorf("period %q: %w", period, domain.ErrUnknownPeriodType)
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	if offset < 0 {
		offset = 0
	}

	snapshots, err := s.communityRepo.Leaderboard(ctx, period, limit, offset, filters)
	if err != nil {
		return nil, err
	}

	names, err := s.userNames(ctx, snapshotUserIDs(snapshots))
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, len(snapshots))
	for i, snap := range snapshots {
		entries[i] = domain.LeaderboardEntry{
			Position: offset + i + 1,
			UserName: names[snap.UserID],
			Snapshot: snap,
		}
	}
	return entries, nil
}

// GetUserStats returns a user's snapshot history for one period label,
// newest first.
func (s *LeaderboardService) GetUserStats(ctx context.Context, userID uuid.UUID, period domain.PeriodType, limit int) ([]domain.CommunityStatsSnapshot, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	return s.communityRepo.History(ctx, userID, period, limit)
}

// GetStatsByCategory returns the most active submitters in one request
// category over the period window, enriched with their latest snapshot
// scores.
func (s *LeaderboardService) GetStatsByCategory(ctx context.Context, category string, period domain.PeriodType, limit int) ([]domain.CategoryContributor, error) {
	if !period.ValidForCommunity() {
		return nil, fmt.Errorf("period %q: %w", period, domain.ErrUnknownPeriodType)
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	start, end := period.Window(s.clock())
	rows, err := s.requestRepo.TopSubmittersByCategory(ctx, category, start, end, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].SubmitterID
	}
	names, err := s.userNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	latest, err := s.communityRepo.LatestForUsers(ctx, ids, period)
	if err != nil {
		return nil, err
	}

	contributors := make([]domain.CategoryContributor, len(rows))
	for i, row := range rows {
		contributor := domain.CategoryContributor{
			UserID:       row.SubmitterID,
			UserName:     names[row.SubmitterID],
			RequestCount: row.Total,
		}
		if snap, ok := latest[row.SubmitterID]; ok {
			contributor.OverallScore = snap.OverallScore
			contributor.Rank = snap.Rank
		}
		contributors[i] = contributor
	}
	return contributors, nil
}

// GetTrendingStats returns the trend series for one department metric over a
// date range with its min/max/average rollup. An empty range yields zeros.
func (s *LeaderboardService) GetTrendingStats(ctx context.Context, departmentID uuid.UUID, metric domain.MetricType, period domain.PeriodType, from, to time.Time) (*domain.TrendSeries, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("metric %q: %w", metric, domain.ErrUnknownMetricType)
	}
	if _, err := s.deptRepo.GetByID(ctx, departmentID); err != nil {
		return nil, err
	}

	snapshots, err := s.metricRepo.Series(ctx, departmentID, metric, period, from, to)
	if err != nil {
		return nil, err
	}

	series := &domain.TrendSeries{
		MetricType: metric,
		PeriodType: period,
		Points:     make([]domain.TrendPoint, len(snapshots)),
	}
	var sum float64
	for i, snap := range snapshots {
		series.Points[i] = domain.TrendPoint{PeriodStart: snap.PeriodStart, Value: snap.Value}
		sum += snap.Value
		if i == 0 || snap.Value < series.Min {
			series.Min = snap.Value
		}
		if i == 0 || snap.Value > series.Max {
			series.Max = snap.Value
		}
	}
	if len(snapshots) > 0 {
		series.Average = sum / float64(len(snapshots))
	}
	return series, nil
}

// GetStatsSummary aggregates the whole snapshot population of one period
// label.
func (s *LeaderboardService) GetStatsSummary(ctx context.Context, period domain.PeriodType) (*domain.StatsSummary, error) {
	if !period.ValidForCommunity() {
		return nil, fmt.Errorf("period %q: %w", period, domain.ErrUnknownPeriodType)
	}
	return s.communityRepo.Summary(ctx, period)
}

// GetDepartmentMetrics returns the most recent snapshot per metric type for
// one department and period.
func (s *LeaderboardService) GetDepartmentMetrics(ctx context.Context, departmentID uuid.UUID, period domain.PeriodType) ([]domain.MetricSnapshot, error) {
	if _, err := s.deptRepo.GetByID(ctx, departmentID); err != nil {
		return nil, err
	}
	return s.metricRepo.LatestForDepartment(ctx, departmentID, period)
}

// userNames resolves user IDs to display names; unknown IDs are absent.
func (s *LeaderboardService) userNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].Name
	}
	return names, nil
}

// snapshotUserIDs collects the user IDs of a snapshot slice.
func snapshotUserIDs(snapshots []domain.CommunityStatsSnapshot) []uuid.UUID {
	ids := make([]uuid.UUID, len(snapshots))
	for i := range snapshots {
		ids[i] = snapshots[i].UserID
	}
	return ids
}
