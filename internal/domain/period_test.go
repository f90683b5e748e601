package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPeriodTypeWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		period        PeriodType
		expectedStart time.Time
	}{
		{
			name:          "daily looks back one day",
			period:        PeriodDaily,
			expectedStart: time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name:          "weekly looks back seven days",
			period:        PeriodWeekly,
			expectedStart: time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC),
		},
		{
			name:          "monthly looks back one calendar month",
			period:        PeriodMonthly,
			expectedStart: time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:          "quarterly looks back three calendar months",
			period:        PeriodQuarterly,
			expectedStart: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:          "yearly looks back one year",
			period:        PeriodYearly,
			expectedStart: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.period.Window(now)
			if !start.Equal(tt.expectedStart) {
				t.Errorf("expected start %v, got %v", tt.expectedStart, start)
			}
			if !end.Equal(now) {
				t.Errorf("expected end %v, got %v", now, end)
			}
		})
	}
}

func TestPeriodTypeWindowAllTime(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	start, end := PeriodAllTime.Window(now)
	if !start.IsZero() {
		t.Errorf("expected zero start for all_time, got %v", start)
	}
	if !end.Equal(now) {
		t.Errorf("expected end %v, got %v", now, end)
	}
}

func TestPeriodTypeScopes(t *testing.T) {
	tests := []struct {
		period         PeriodType
		forDepartments bool
		forCommunity   bool
	}{
		{PeriodDaily, true, true},
		{PeriodWeekly, true, true},
		{PeriodMonthly, true, true},
		{PeriodQuarterly, true, false},
		{PeriodYearly, false, true},
		{PeriodAllTime, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			if got := tt.period.ValidForDepartments(); got != tt.forDepartments {
				t.Errorf("ValidForDepartments() = %v, want %v", got, tt.forDepartments)
			}
			if got := tt.period.ValidForCommunity(); got != tt.forCommunity {
				t.Errorf("ValidForCommunity() = %v, want %v", got, tt.forCommunity)
			}
		})
	}
}

func TestParsePeriodType(t *testing.T) {
	p, err := ParsePeriodType("weekly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != PeriodWeekly {
		t.Errorf("expected weekly, got %s", p)
	}

	if _, err := ParsePeriodType("hourly"); !errors.Is(err, ErrUnknownPeriodType) {
		t.Errorf("expected ErrUnknownPeriodType, got %v", err)
	}
}
