package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newMetricsService(db *gorm.DB, clock Clock) *DepartmentMetricsService {
	log := logger.New(&logger.Config{Level: "error"})
	return NewDepartmentMetricsService(
		repository.NewDepartmentRepository(db),
		repository.NewRequestRepository(db),
		repository.NewMetricRepository(db),
		log,
		clock,
	)
}

func seedDepartment(t *testing.T, db *gorm.DB, name string) domain.Department {
	t.Helper()
	dept := domain.Department{ID: uuid.New(), Name: name, Code: name, Active: true}
	if err := db.Create(&dept).Error; err != nil {
		t.Fatalf("failed to seed department: %v", err)
	}
	return dept
}

func TestGenerateDepartmentReport(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	dept := seedDepartment(t, db, "public-works")
	citizen := seedUser(t, db, "citizen")

	staff := domain.User{
		ID:           uuid.New(),
		Name:         "staffer",
		Email:        "staffer@example.com",
		Role:         domain.RoleStaff,
		DepartmentID: &dept.ID,
		Active:       true,
	}
	if err := db.Create(&staff).Error; err != nil {
		t.Fatalf("failed to seed staff: %v", err)
	}

	created := now.Add(-3 * 24 * time.Hour)
	rating := 4

	// Closed after 4h, one assignment, rated 4, on time.
	closedAt := created.Add(4 * time.Hour)
	due := created.Add(24 * time.Hour)
	resolved := domain.ServiceRequest{
		ID: uuid.New(), Title: "streetlight", Category: "lighting",
		Priority: domain.PriorityHigh, Status: domain.StatusResolved,
		DepartmentID: dept.ID, SubmitterID: citizen.ID, AssigneeID: &staff.ID,
		SatisfactionRating: &rating, DueAt: &due, ClosedAt: &closedAt, CreatedAt: created,
	}
	// Still open past its due date, escalated twice.
	overdueDue := created.Add(2 * time.Hour)
	open := domain.ServiceRequest{
		ID: uuid.New(), Title: "pothole", Category: "roads",
		Priority: domain.PriorityUrgent, Status: domain.StatusInProgress,
		DepartmentID: dept.ID, SubmitterID: citizen.ID, AssigneeID: &staff.ID,
		DueAt: &overdueDue, CreatedAt: created,
	}
	for _, req := range []*domain.ServiceRequest{&resolved, &open} {
		if err := db.Create(req).Error; err != nil {
			t.Fatalf("failed to seed request: %v", err)
		}
	}

	assignments := []domain.Assignment{
		{ID: uuid.New(), RequestID: resolved.ID, AssigneeID: staff.ID, AssignedAt: created},
		{ID: uuid.New(), RequestID: open.ID, AssigneeID: staff.ID, AssignedAt: created},
		{ID: uuid.New(), RequestID: open.ID, AssigneeID: staff.ID, AssignedAt: created.Add(time.Hour)},
	}
	for i := range assignments {
		if err := db.Create(&assignments[i]).Error; err != nil {
			t.Fatalf("failed to seed assignment: %v", err)
		}
	}

	svc := newMetricsService(db, func() time.Time { return now })

	report, err := svc.GenerateDepartmentReport(ctx, dept.ID, domain.PeriodWeekly)
	if err != nil {
		t.Fatalf("GenerateDepartmentReport failed: %v", err)
	}

	if math.Abs(report.AverageResolutionTime-4) > 1e-9 {
		t.Errorf("expected 4h average resolution, got %v", report.AverageResolutionTime)
	}
	if math.Abs(report.CitizenSatisfactionScore-4) > 1e-9 {
		t.Errorf("expected satisfaction 4, got %v", report.CitizenSatisfactionScore)
	}
	if math.Abs(report.FirstCallResolutionRate-100) > 1e-9 {
		t.Errorf("expected 100%% first-call resolution, got %v", report.FirstCallResolutionRate)
	}
	if report.RequestVolume != 2 {
		t.Errorf("expected request volume 2, got %v", report.RequestVolume)
	}
	// One compliant closure, one overdue open request.
	if math.Abs(report.SLAComplianceRate-50) > 1e-9 {
		t.Errorf("expected 50%% SLA compliance, got %v", report.SLAComplianceRate)
	}
	if math.Abs(report.EscalationRate-50) > 1e-9 {
		t.Errorf("expected 50%% escalation, got %v", report.EscalationRate)
	}

	if report.CategoryBreakdown["roads"] != 1 || report.CategoryBreakdown["lighting"] != 1 {
		t.Errorf("unexpected category breakdown: %v", report.CategoryBreakdown)
	}
	if report.PriorityBreakdown[domain.PriorityUrgent] != 1 {
		t.Errorf("unexpected priority breakdown: %v", report.PriorityBreakdown)
	}

	if len(report.AgentWorkloads) != 1 {
		t.Fatalf("expected 1 staff workload, got %d", len(report.AgentWorkloads))
	}
	wl := report.AgentWorkloads[0]
	if wl.ActiveRequests != 1 || wl.CompletedRequests != 1 {
		t.Errorf("expected 1 active and 1 completed, got %d/%d", wl.ActiveRequests, wl.CompletedRequests)
	}
	if wl.WorkloadScore <= 0 {
		t.Errorf("expected positive workload score, got %v", wl.WorkloadScore)
	}
}

func TestGenerateDepartmentReportErrors(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newMetricsService(db, nil)

	if _, err := svc.GenerateDepartmentReport(ctx, uuid.New(), domain.PeriodWeekly); !errors.Is(err, domain.ErrDepartmentNotFound) {
		t.Errorf("expected ErrDepartmentNotFound, got %v", err)
	}

	dept := seedDepartment(t, db, "parks")
	if _, err := svc.GenerateDepartmentReport(ctx, dept.ID, domain.PeriodAllTime); !errors.Is(err, domain.ErrUnknownPeriodType) {
		t.Errorf("expected ErrUnknownPeriodType for all_time department report, got %v", err)
	}
}

func TestGenerateDepartmentReportEmptyWindow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	dept := seedDepartment(t, db, "sanitation")
	svc := newMetricsService(db, func() time.Time { return now })

	report, err := svc.GenerateDepartmentReport(ctx, dept.ID, domain.PeriodDaily)
	if err != nil {
		t.Fatalf("GenerateDepartmentReport failed: %v", err)
	}

	if report.AverageResolutionTime != 0 || report.RequestVolume != 0 || report.EscalationRate != 0 {
		t.Errorf("expected zero activity metrics for empty window, got %+v", report)
	}
	if report.SLAComplianceRate != 100 {
		t.Errorf("expected 100%% SLA compliance for empty window, got %v", report.SLAComplianceRate)
	}
}

func TestStoreDepartmentMetrics(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	dept := seedDepartment(t, db, "water")
	svc := newMetricsService(db, func() time.Time { return now })

	report, err := svc.GenerateDepartmentReport(ctx, dept.ID, domain.PeriodDaily)
	if err != nil {
		t.Fatalf("GenerateDepartmentReport failed: %v", err)
	}
	if err := svc.StoreDepartmentMetrics(ctx, report); err != nil {
		t.Fatalf("StoreDepartmentMetrics failed: %v", err)
	}

	metricRepo := repository.NewMetricRepository(db)
	count, err := metricRepo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != int64(len(domain.MetricTypes())) {
		t.Errorf("expected one snapshot per metric type (%d), got %d", len(domain.MetricTypes()), count)
	}

	// Storing the same report again overwrites in place.
	if err := svc.StoreDepartmentMetrics(ctx, report); err != nil {
		t.Fatalf("second StoreDepartmentMetrics failed: %v", err)
	}
	count, err = metricRepo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != int64(len(domain.MetricTypes())) {
		t.Errorf("expected snapshot count unchanged after restore, got %d", count)
	}
}
