package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/civicworks/pulse/internal/storage"
)

const exportLeaderboardSize = 1000

// ExportService renders snapshot projections as CSV artifacts and uploads
// them to object storage for dashboard consumption. Exports are derived
// files; the snapshot store itself still overwrites in place.
type ExportService struct {
	communityRepo *repository.CommunityRepository
	metricRepo    *repository.MetricRepository
	deptRepo      *repository.DepartmentRepository
	userRepo      *repository.UserRepository
	storage       storage.ObjectStorage
	logger        *logger.Logger
	clock         Clock
}

// NewExportService creates a new ExportService.
func NewExportService(
	communityRepo *repository.CommunityRepository,
	metricRepo *repository.MetricRepository,
	deptRepo *repository.DepartmentRepository,
	userRepo *repository.UserRepository,
	objectStorage storage.ObjectStorage,
	log *logger.Logger,
	clock Clock,
) *ExportService {
	if clock == nil {
		clock = time.Now
	}
	return &ExportService{
		communityRepo: communityRepo,
		metricRepo:    metricRepo,
		deptRepo:      deptRepo,
		userRepo:      userRepo,
		storage:       objectStorage,
		logger:        log,
		clock:         clock,
	}
}

// ExportLeaderboard renders the current leaderboard for one period label and
// uploads it under a dated key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - period: period label to export.
// Returns:
//   - string: object key of the uploaded CSV.
//   - error: non-nil if the query, render or upload fails.
func (s *ExportService) ExportLeaderboard(ctx context.Context, period domain.PeriodType) (string, error) {
	snapshots, err := s.communityRepo.Leaderboard(ctx, period, exportLeaderboardSize, 0, repository.LeaderboardFilters{})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"rank", "user_id", "overall_score", "contribution_score",
		"engagement_score", "quality_score", "requests_submitted",
		"requests_resolved", "comments_posted", "upvotes_received",
		"calculated_at",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to render leaderboard CSV: %w", err)
	}
	for i := range snapshots {
		snap := &snapshots[i]
		record := []string{
			strconv.Itoa(snap.Rank),
			snap.UserID.String(),
			formatScore(snap.OverallScore),
			formatScore(snap.ContributionScore),
			formatScore(snap.EngagementScore),
			formatScore(snap.QualityScore),
			strconv.Itoa(snap.RequestsSubmitted),
			strconv.Itoa(snap.RequestsResolved),
			strconv.Itoa(snap.CommentsPosted),
			strconv.Itoa(snap.UpvotesReceived),
			snap.CalculatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to render leaderboard CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to render leaderboard CSV: %w", err)
	}

	key := fmt.Sprintf("exports/leaderboard/%s/%s.csv", period, s.clock().UTC().Format("20060102T150405Z"))
	if err := s.upload(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}
	return key, nil
}

// ExportDepartmentMetrics renders the latest metric snapshot per department
// and metric type for one period label and uploads it under a dated key.
func (s *ExportService) ExportDepartmentMetrics(ctx context.Context, period domain.PeriodType) (string, error) {
	departments, err := s.deptRepo.ListActive(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"department", "metric_type", "period_start", "period_end", "value", "calculated_at"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to render metrics CSV: %w", err)
	}
	for i := range departments {
		dept := &departments[i]
		snapshots, err := s.metricRepo.LatestForDepartment(ctx, dept.ID, period)
		if err != nil {
			return "", err
		}
		for j := range snapshots {
			snap := &snapshots[j]
			record := []string{
				dept.Name,
				string(snap.MetricType),
				snap.PeriodStart.UTC().Format(time.RFC3339),
				snap.PeriodEnd.UTC().Format(time.RFC3339),
				formatScore(snap.Value),
				snap.CalculatedAt.UTC().Format(time.RFC3339),
			}
			if err := w.Write(record); err != nil {
				return "", fmt.Errorf("failed to render metrics CSV: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to render metrics CSV: %w", err)
	}

	key := fmt.Sprintf("exports/department-metrics/%s/%s.csv", period, s.clock().UTC().Format("20060102T150405Z"))
	if err := s.upload(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}
	return key, nil
}

func (s *ExportService) upload(ctx context.Context, key string, data []byte) error {
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return fmt.Errorf("failed to upload export %s: %w", key, err)
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldComponent: "export",
		"key":                 key,
		"bytes":               len(data),
	}).Infof("Export uploaded")
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
