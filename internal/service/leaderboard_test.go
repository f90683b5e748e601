package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newLeaderboardService(db *gorm.DB, clock Clock) *LeaderboardService {
	log := logger.New(&logger.Config{Level: "error"})
	return NewLeaderboardService(
		repository.NewCommunityRepository(db),
		repository.NewUserRepository(db),
		repository.NewRequestRepository(db),
		repository.NewMetricRepository(db),
		repository.NewDepartmentRepository(db),
		log,
		clock,
	)
}

// seedSnapshot writes one ranked snapshot directly to the store.
func seedSnapshot(t *testing.T, db *gorm.DB, userID uuid.UUID, rank int, score float64, submitted int, periodStart time.Time) {
	t.Helper()
	snap := domain.CommunityStatsSnapshot{
		ID:                uuid.New(),
		UserID:            userID,
		PeriodType:        domain.PeriodAllTime,
		PeriodStart:       periodStart,
		PeriodEnd:         periodStart.AddDate(0, 0, 7),
		RequestsSubmitted: submitted,
		OverallScore:      score,
		Rank:              rank,
		CalculatedAt:      periodStart,
	}
	if err := db.Create(&snap).Error; err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}
}

func TestGetLeaderboardOrderingAndPosition(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	users := make([]domain.User, 5)
	for i := range users {
		users[i] = seedUser(t, db, fmt.Sprintf("user%d", i))
		seedSnapshot(t, db, users[i].ID, i+1, float64(100-i*10), 10, periodStart)
	}

	svc := newLeaderboardService(db, func() time.Time { return now })

	entries, err := svc.GetLeaderboard(ctx, domain.PeriodAllTime, 2, 2, repository.LeaderboardFilters{})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	// Position is page-local; the persisted rank travels on the snapshot.
	if entries[0].Position != 3 || entries[1].Position != 4 {
		t.Errorf("expected positions 3 and 4, got %d and %d", entries[0].Position, entries[1].Position)
	}
	if entries[0].Snapshot.OverallScore < entries[1].Snapshot.OverallScore {
		t.Error("expected entries ordered by overall score descending")
	}
	if entries[0].Snapshot.Rank != 3 {
		t.Errorf("expected persisted rank 3 at offset 2, got %d", entries[0].Snapshot.Rank)
	}
	if entries[0].UserName == "" {
		t.Error("expected user name to be resolved")
	}
}

func TestGetLeaderboardLimitClamping(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 30; i++ {
		user := seedUser(t, db, fmt.Sprintf("user%d", i))
		seedSnapshot(t, db, user.ID, i+1, float64(1000-i), 1, periodStart)
	}

	svc := newLeaderboardService(db, func() time.Time { return now })

	// Zero limit uses the default page size.
	entries, err := svc.GetLeaderboard(ctx, domain.PeriodAllTime, 0, 0, repository.LeaderboardFilters{})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("expected default page size 20, got %d", len(entries))
	}

	// Oversized limits are clamped, not rejected.
	entries, err = svc.GetLeaderboard(ctx, domain.PeriodAllTime, 5000, 0, repository.LeaderboardFilters{})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(entries) != 30 {
		t.Errorf("expected all 30 rows under the 100 cap, got %d", len(entries))
	}
}

func TestGetLeaderboardFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	active := seedUser(t, db, "active")
	casual := seedUser(t, db, "casual")
	seedSnapshot(t, db, active.ID, 1, 200, 12, periodStart)
	seedSnapshot(t, db, casual.ID, 2, 40, 1, periodStart)

	svc := newLeaderboardService(db, func() time.Time { return now })

	entries, err := svc.GetLeaderboard(ctx, domain.PeriodAllTime, 10, 0, repository.LeaderboardFilters{MinRequests: 5})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Snapshot.UserID != active.ID {
		t.Errorf("expected only the active user past the MinRequests filter, got %d entries", len(entries))
	}

	entries, err = svc.GetLeaderboard(ctx, domain.PeriodAllTime, 10, 0, repository.LeaderboardFilters{MinOverallScore: 100})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Snapshot.UserID != active.ID {
		t.Errorf("expected only the active user past the MinOverallScore filter, got %d entries", len(entries))
	}
}

func TestGetLeaderboardRejectsDepartmentOnlyPeriod(t *testing.T) {
	db := testDB(t)
	svc := newLeaderboardService(db, nil)

	_, err := svc.GetLeaderboard(context.Background(), domain.PeriodQuarterly, 10, 0, repository.LeaderboardFilters{})
	if !errors.Is(err, domain.ErrUnknownPeriodType) {
		t.Errorf("expected ErrUnknownPeriodType for quarterly leaderboard, got %v", err)
	}
}

func TestGetUserStatsUnknownUser(t *testing.T) {
	db := testDB(t)
	svc := newLeaderboardService(db, nil)

	_, err := svc.GetUserStats(context.Background(), uuid.New(), domain.PeriodAllTime, 10)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetTrendingStats(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	dept := domain.Department{ID: uuid.New(), Name: "Public Works", Code: "PW", Active: true}
	if err := db.Create(&dept).Error; err != nil {
		t.Fatalf("failed to seed department: %v", err)
	}

	metricRepo := repository.NewMetricRepository(db)
	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }
	batch := []domain.MetricSnapshot{
		{DepartmentID: dept.ID, MetricType: domain.MetricRequestVolume, PeriodType: domain.PeriodDaily, PeriodStart: day(10), PeriodEnd: day(11), Value: 10},
		{DepartmentID: dept.ID, MetricType: domain.MetricRequestVolume, PeriodType: domain.PeriodDaily, PeriodStart: day(11), PeriodEnd: day(12), Value: 30},
		{DepartmentID: dept.ID, MetricType: domain.MetricRequestVolume, PeriodType: domain.PeriodDaily, PeriodStart: day(12), PeriodEnd: day(13), Value: 20},
	}
	if err := metricRepo.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	svc := newLeaderboardService(db, nil)

	series, err := svc.GetTrendingStats(ctx, dept.ID, domain.MetricRequestVolume, domain.PeriodDaily, day(10), day(12))
	if err != nil {
		t.Fatalf("GetTrendingStats failed: %v", err)
	}
	if len(series.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(series.Points))
	}
	if series.Min != 10 || series.Max != 30 || series.Average != 20 {
		t.Errorf("unexpected rollup: min=%v max=%v avg=%v", series.Min, series.Max, series.Average)
	}
	if !series.Points[0].PeriodStart.Before(series.Points[2].PeriodStart) {
		t.Error("expected points ordered oldest first")
	}

	if _, err := svc.GetTrendingStats(ctx, dept.ID, domain.MetricType("bogus"), domain.PeriodDaily, day(10), day(12)); !errors.Is(err, domain.ErrUnknownMetricType) {
		t.Errorf("expected ErrUnknownMetricType, got %v", err)
	}
	if _, err := svc.GetTrendingStats(ctx, uuid.New(), domain.MetricRequestVolume, domain.PeriodDaily, day(10), day(12)); !errors.Is(err, domain.ErrDepartmentNotFound) {
		t.Errorf("expected ErrDepartmentNotFound, got %v", err)
	}
}
