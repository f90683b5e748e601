package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error"})
}

func TestParseFireTime(t *testing.T) {
	tests := []struct {
		input   string
		hour    int
		minute  int
		wantErr bool
	}{
		{"00:30", 0, 30, false},
		{"23:59", 23, 59, false},
		{"7:05", 7, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			hour, minute, err := ParseFireTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hour != tt.hour || minute != tt.minute {
				t.Errorf("ParseFireTime(%q) = %d:%d, want %d:%d", tt.input, hour, minute, tt.hour, tt.minute)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	// Sunday June 15 2025, 12:00 UTC.
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		spec     JobSpec
		expected time.Time
	}{
		{
			name:     "daily fire time already passed fires tomorrow",
			spec:     JobSpec{Period: domain.PeriodDaily, Hour: 0, Minute: 30},
			expected: time.Date(2025, 6, 16, 0, 30, 0, 0, time.UTC),
		},
		{
			name:     "daily fire time still ahead fires today",
			spec:     JobSpec{Period: domain.PeriodDaily, Hour: 18, Minute: 0},
			expected: time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC),
		},
		{
			name:     "weekly fires next Monday",
			spec:     JobSpec{Period: domain.PeriodWeekly, Hour: 1, Minute: 0},
			expected: time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC),
		},
		{
			name:     "monthly fires on the first of next month",
			spec:     JobSpec{Period: domain.PeriodMonthly, Hour: 2, Minute: 0},
			expected: time.Date(2025, 7, 1, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "quarterly fires on the first day of the next quarter",
			spec:     JobSpec{Period: domain.PeriodQuarterly, Hour: 3, Minute: 0},
			expected: time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRun(tt.spec, now, time.UTC)
			if !got.Equal(tt.expected) {
				t.Errorf("NextRun() = %v, want %v", got, tt.expected)
			}
			if !got.After(now) {
				t.Errorf("NextRun() = %v must be strictly after now %v", got, now)
			}
		})
	}
}

func TestNextRunOnMonday(t *testing.T) {
	// Monday June 16 2025, 00:30 UTC: before the weekly fire time, so the
	// weekly job fires the same day.
	now := time.Date(2025, 6, 16, 0, 30, 0, 0, time.UTC)
	spec := JobSpec{Period: domain.PeriodWeekly, Hour: 1, Minute: 0}

	got := NextRun(spec, now, time.UTC)
	expected := time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("NextRun() = %v, want %v", got, expected)
	}

	// After the fire time it pushes a full week.
	later := time.Date(2025, 6, 16, 2, 0, 0, 0, time.UTC)
	got = NextRun(spec, later, time.UTC)
	expected = time.Date(2025, 6, 23, 1, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("NextRun() = %v, want %v", got, expected)
	}
}

func TestJobRegistryControl(t *testing.T) {
	driver := func(ctx context.Context, period domain.PeriodType) error { return nil }
	s := New(driver, nil, time.UTC, testLogger())

	s.Initialize([]JobSpec{
		{Name: JobDaily, Period: domain.PeriodDaily, Hour: 0, Minute: 30},
		{Name: JobWeekly, Period: domain.PeriodWeekly, Hour: 1, Minute: 0},
	})
	defer s.StopAllJobs()

	status := s.GetJobStatus()
	if len(status) != 2 {
		t.Fatalf("expected 2 registered jobs, got %d", len(status))
	}
	if !status[JobDaily] || !status[JobWeekly] {
		t.Errorf("expected all jobs running after Initialize, got %v", status)
	}

	s.StopJob(JobDaily)
	status = s.GetJobStatus()
	if status[JobDaily] {
		t.Error("expected daily job stopped")
	}
	if !status[JobWeekly] {
		t.Error("expected weekly job unaffected by stopping daily")
	}

	// Stopping again is a no-op, not a panic.
	s.StopJob(JobDaily)
	s.StopJob("no-such-job")

	s.StartJob(JobDaily)
	if !s.GetJobStatus()[JobDaily] {
		t.Error("expected daily job running after StartJob")
	}

	s.StopAllJobs()
	for name, running := range s.GetJobStatus() {
		if running {
			t.Errorf("expected job %s stopped after StopAllJobs", name)
		}
	}

	s.RestartAllJobs()
	for name, running := range s.GetJobStatus() {
		if !running {
			t.Errorf("expected job %s running after RestartAllJobs", name)
		}
	}
}

func TestTriggerImmediateCalculation(t *testing.T) {
	var calledWith domain.PeriodType
	driverErr := errors.New("boom")
	driver := func(ctx context.Context, period domain.PeriodType) error {
		calledWith = period
		return driverErr
	}

	s := New(driver, nil, time.UTC, testLogger())

	err := s.TriggerImmediateCalculation(context.Background(), domain.PeriodWeekly)
	if !errors.Is(err, driverErr) {
		t.Errorf("expected driver error to propagate, got %v", err)
	}
	if calledWith != domain.PeriodWeekly {
		t.Errorf("expected driver called with weekly, got %s", calledWith)
	}

	// Periods outside the department scope are rejected without running.
	calledWith = ""
	err = s.TriggerImmediateCalculation(context.Background(), domain.PeriodAllTime)
	if !errors.Is(err, domain.ErrUnknownPeriodType) {
		t.Errorf("expected ErrUnknownPeriodType, got %v", err)
	}
	if calledWith != "" {
		t.Error("driver must not run for out-of-scope periods")
	}
}

func TestScheduledRunFiresAndSurvivesFailure(t *testing.T) {
	runs := make(chan domain.PeriodType, 4)
	driver := func(ctx context.Context, period domain.PeriodType) error {
		runs <- period
		return errors.New("transient failure")
	}

	// Clock pinned just before the fire time so the first tick is immediate.
	base := time.Date(2025, 6, 15, 0, 29, 59, int(999 * time.Millisecond), time.UTC)
	s := New(driver, func() time.Time { return base }, time.UTC, testLogger())

	s.Initialize([]JobSpec{{Name: JobDaily, Period: domain.PeriodDaily, Hour: 0, Minute: 30}})
	defer s.StopAllJobs()

	select {
	case period := <-runs:
		if period != domain.PeriodDaily {
			t.Errorf("expected daily run, got %s", period)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled run never fired")
	}

	// The failure must not stop the job.
	if !s.GetJobStatus()[JobDaily] {
		t.Error("expected job still running after a failed run")
	}
}
