package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/google/uuid"
)

// Clock abstracts the process clock so calculators can be tested against
// fixed times.
type Clock func() time.Time

// DepartmentMetricsService computes and persists department KPI bundles.
type DepartmentMetricsService struct {
	deptRepo    *repository.DepartmentRepository
	requestRepo *repository.RequestRepository
	metricRepo  *repository.MetricRepository
	logger      *logger.Logger
	clock       Clock
}

// NewDepartmentMetricsService creates a new DepartmentMetricsService.
// Parameters:
//   - deptRepo: department and staff lookups.
//   - requestRepo: service-request activity reads.
//   - metricRepo: metric snapshot persistence.
//   - log: base logger.
//   - clock: process clock; nil uses time.Now.
// Returns:
//   - *DepartmentMetricsService: initialized service.
func NewDepartmentMetricsService(
	deptRepo *repository.DepartmentRepository,
	requestRepo *repository.RequestRepository,
	metricRepo *repository.MetricRepository,
	log *logger.Logger,
	clock Clock,
) *DepartmentMetricsService {
	if clock == nil {
		clock = time.Now
	}
	return &DepartmentMetricsService{
		deptRepo:    deptRepo,
		requestRepo: requestRepo,
		metricRepo:  metricRepo,
		logger:      log,
		clock:       clock,
	}
}

func (s *DepartmentMetricsService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// GenerateDepartmentReport computes every KPI for one department over one
// period window. The independent metric groups run concurrently and join
// before the report is assembled; any failure aborts the whole report with
// no partial output.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - departmentID: department to report on.
//   - period: aggregation period; must be in the department scope.
// Returns:
//   - *domain.DepartmentReport: complete KPI bundle.
//   - error: domain.ErrDepartmentNotFound if the department is missing,
//     domain.ErrUnknownPeriodType for out-of-scope periods, or a query error.
func (s *DepartmentMetricsService) GenerateDepartmentReport(ctx context.Context, departmentID uuid.UUID, period domain.PeriodType) (*domain.DepartmentReport, error) {
	if !period.ValidForDepartments() {
		return nil, fmt.Errorf("period %q: %w", period, domain.ErrUnknownPeriodType)
	}

	dept, err := s.deptRepo.GetByID(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	start, end := period.Window(now)

	report := &domain.DepartmentReport{
		DepartmentID:   dept.ID,
		DepartmentName: dept.Name,
		PeriodType:     period,
		PeriodStart:    start,
		PeriodEnd:      end,
		GeneratedAt:    now,
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(4)

	// Resolution-side metrics over requests closed in-window.
	go func() {
		defer wg.Done()
		closed, err := s.requestRepo.ClosedInWindow(ctx, departmentID, start, end)
		if err != nil {
			fail(err)
			return
		}
		counts, err := s.requestRepo.AssignmentCounts(ctx, requestIDs(closed))
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.AverageResolutionTime = averageResolutionHours(closed)
		report.CitizenSatisfactionScore = citizenSatisfaction(closed)
		report.FirstCallResolutionRate = firstCallResolutionRate(closed, counts)
		mu.Unlock()
	}()

	// Intake-side metrics over requests created in-window.
	go func() {
		defer wg.Done()
		created, err := s.requestRepo.CreatedInWindow(ctx, departmentID, start, end)
		if err != nil {
			fail(err)
			return
		}
		counts, err := s.requestRepo.AssignmentCounts(ctx, requestIDs(created))
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.RequestVolume = float64(len(created))
		report.SLAComplianceRate = slaComplianceRate(created)
		report.EscalationRate = escalationRate(created, counts)
		mu.Unlock()
	}()

	// Category and priority breakdowns.
	go func() {
		defer wg.Done()
		byCategory, err := s.requestRepo.CountByCategory(ctx, departmentID, start, end)
		if err != nil {
			fail(err)
			return
		}
		byPriority, err := s.requestRepo.CountByPriority(ctx, departmentID, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.CategoryBreakdown = byCategory
		report.PriorityBreakdown = byPriority
		mu.Unlock()
	}()

	// Per-staff workload reports.
	go func() {
		defer wg.Done()
		workloads, utilization, err := s.staffWorkloads(ctx, departmentID, now)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.AgentWorkloads = workloads
		report.StaffUtilization = utilization
		mu.Unlock()
	}()

	wg.Wait()
	if firstErr != nil {
		return nil, fmt.Errorf("department report for %s: %w", departmentID, firstErr)
	}

	return report, nil
}

// staffWorkloads builds every staff member's workload report and returns the
// list sorted by workload score descending plus the mean utilization.
func (s *DepartmentMetricsService) staffWorkloads(ctx context.Context, departmentID uuid.UUID, now time.Time) ([]domain.AgentWorkloadReport, float64, error) {
	staff, err := s.deptRepo.Staff(ctx, departmentID)
	if err != nil {
		return nil, 0, err
	}

	workloads := make([]domain.AgentWorkloadReport, 0, len(staff))
	var utilizationSum float64
	for i := range staff {
		active, err := s.requestRepo.ActiveAssignedTo(ctx, staff[i].ID)
		if err != nil {
			return nil, 0, err
		}
		completed, err := s.requestRepo.CompletedAssignedTo(ctx, staff[i].ID)
		if err != nil {
			return nil, 0, err
		}
		wl := buildWorkloadReport(&staff[i], active, completed, now)
		workloads = append(workloads, wl)
		utilizationSum += wl.UtilizationRate
	}

	sort.SliceStable(workloads, func(i, j int) bool {
		return workloads[i].WorkloadScore > workloads[j].WorkloadScore
	})

	var utilization float64
	if len(workloads) > 0 {
		utilization = utilizationSum / float64(len(workloads))
	}
	return workloads, utilization, nil
}

// StoreDepartmentMetrics persists one upsert per metric type as a single
// atomic transaction; partial failure leaves none of the run's rows changed.
func (s *DepartmentMetricsService) StoreDepartmentMetrics(ctx context.Context, report *domain.DepartmentReport) error {
	calculatedAt := s.clock()
	snapshots := make([]domain.MetricSnapshot, 0, len(domain.MetricTypes()))
	for _, metric := range domain.MetricTypes() {
		snapshots = append(snapshots, domain.MetricSnapshot{
			DepartmentID: report.DepartmentID,
			MetricType:   metric,
			PeriodType:   report.PeriodType,
			PeriodStart:  report.PeriodStart,
			PeriodEnd:    report.PeriodEnd,
			Value:        report.MetricValue(metric),
			CalculatedAt: calculatedAt,
		})
	}
	if err := s.metricRepo.UpsertBatch(ctx, snapshots); err != nil {
		return fmt.Errorf("failed to store department metrics: %w", err)
	}
	return nil
}

// CalculateForAllDepartments runs the report for every active department,
// isolating per-department failures: one bad department is logged and
// skipped, never blocking the rest of the batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - period: aggregation period for every department.
// Returns:
//   - error: non-nil only when the department listing itself fails.
func (s *DepartmentMetricsService) CalculateForAllDepartments(ctx context.Context, period domain.PeriodType) error {
	started := s.clock()
	log := s.log(ctx).WithFields(logger.Fields{
		logger.FieldComponent: "department-metrics",
		logger.FieldPeriod:    string(period),
	})
	log.Infof("Starting department metrics batch")

	departments, err := s.deptRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list departments: %w", err)
	}

	var failed int
	for i := range departments {
		dept := &departments[i]
		report, err := s.GenerateDepartmentReport(ctx, dept.ID, period)
		if err != nil {
			failed++
			log.WithError(err).WithField(logger.FieldDepartmentID, dept.ID.String()).
				Errorf("Department calculation failed")
			continue
		}
		if err := s.StoreDepartmentMetrics(ctx, report); err != nil {
			failed++
			log.WithError(err).WithField(logger.FieldDepartmentID, dept.ID.String()).
				Errorf("Department metrics store failed")
			continue
		}
		log.WithField(logger.FieldDepartmentID, dept.ID.String()).
			Debugf("Department metrics stored")
	}

	log.WithFields(logger.Fields{
		logger.FieldCount:      len(departments),
		logger.FieldFailed:     failed,
		logger.FieldDurationMs: s.clock().Sub(started).Milliseconds(),
	}).Infof("Department metrics batch complete")
	return nil
}

// requestIDs collects the IDs of a request slice.
func requestIDs(requests []domain.ServiceRequest) []uuid.UUID {
	ids := make([]uuid.UUID, len(requests))
	for i := range requests {
		ids[i] = requests[i].ID
	}
	return ids
}

// averageResolutionHours is the mean creation-to-closure duration over
// closed requests, 0 (never NaN) when the window is empty.
func averageResolutionHours(closed []domain.ServiceRequest) float64 {
	if len(closed) == 0 {
		return 0
	}
	var total float64
	for i := range closed {
		total += closed[i].ResolutionHours()
	}
	return total / float64(len(closed))
}

// citizenSatisfaction is the mean explicit 1-5 rating over rated closed
// requests, 0 when none are rated.
func citizenSatisfaction(closed []domain.ServiceRequest) float64 {
	var total float64
	var rated int
	for i := range closed {
		if closed[i].SatisfactionRating == nil {
			continue
		}
		total += float64(*closed[i].SatisfactionRating)
		rated++
	}
	if rated == 0 {
		return 0
	}
	return total / float64(rated)
}

// firstCallResolutionRate is the percentage of closed requests resolved with
// at most one assignment.
func firstCallResolutionRate(closed []domain.ServiceRequest, assignmentCounts map[uuid.UUID]int64) float64 {
	if len(closed) == 0 {
		return 0
	}
	var firstCall int
	for i := range closed {
		if assignmentCounts[closed[i].ID] <= 1 {
			firstCall++
		}
	}
	return float64(firstCall) / float64(len(closed)) * 100
}

// slaComplianceRate is the percentage of created requests closed on or
// before their due timestamp. Requests without a due timestamp count
// compliant; still-open requests count non-compliant. An empty window is
// fully compliant.
func slaComplianceRate(created []domain.ServiceRequest) float64 {
	if len(created) == 0 {
		return 100
	}
	var compliant int
	for i := range created {
		r := &created[i]
		switch {
		case r.DueAt == nil:
			compliant++
		case r.ClosedAt != nil && !r.ClosedAt.After(*r.DueAt):
			compliant++
		}
	}
	return float64(compliant) / float64(len(created)) * 100
}

// escalationRate is the percentage of created requests with more than one
// assignment.
func escalationRate(created []domain.ServiceRequest, assignmentCounts map[uuid.UUID]int64) float64 {
	if len(created) == 0 {
		return 0
	}
	var escalated int
	for i := range created {
		if assignmentCounts[created[i].ID] > 1 {
			escalated++
		}
	}
	return float64(escalated) / float64(len(created)) * 100
}
