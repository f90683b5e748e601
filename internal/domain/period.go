package domain

import "time"

// PeriodType names an aggregation granularity with a fixed lookback window.
// Department metrics use the daily..quarterly subset; community stats use
// daily, weekly, monthly, yearly and all_time.
type PeriodType string

const (
	PeriodDaily     PeriodType = "daily"
	PeriodWeekly    PeriodType = "weekly"
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
	PeriodAllTime   PeriodType = "all_time"
)

// DepartmentPeriods lists the period types the department calculator accepts.
func DepartmentPeriods() []PeriodType {
	return []PeriodType{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly}
}

// CommunityPeriods lists the period types the community calculator accepts.
func CommunityPeriods() []PeriodType {
	return []PeriodType{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodAllTime}
}

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly, PeriodAllTime:
		return true
	}
	return false
}

// ValidForDepartments reports whether p is in the department scope.
func (p PeriodType) ValidForDepartments() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly:
		return true
	}
	return false
}

// ValidForCommunity reports whether p is in the community scope.
func (p PeriodType) ValidForCommunity() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodAllTime:
		return true
	}
	return false
}

// Window resolves the aggregation window ending at now.
// Parameters:
//   - now: window end, normally the process clock reading.
// Returns:
//   - time.Time: window start (zero time for all_time).
//   - time.Time: window end, always equal to now.
func (p PeriodType) Window(now time.Time) (time.Time, time.Time) {
	switch p {
	case PeriodDaily:
		return now.AddDate(0, 0, -1), now
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), now
	case PeriodMonthly:
		return now.AddDate(0, -1, 0), now
	case PeriodQuarterly:
		return now.AddDate(0, -3, 0), now
	case PeriodYearly:
		return now.AddDate(-1, 0, 0), now
	case PeriodAllTime:
		return time.Time{}, now
	default:
		return now.AddDate(0, 0, -1), now
	}
}

// ParsePeriodType converts a label to a PeriodType.
// Returns ErrUnknownPeriodType for labels outside the enum.
func ParsePeriodType(s string) (PeriodType, error) {
	p := PeriodType(s)
	if !p.Valid() {
		return "", ErrUnknownPeriodType
	}
	return p, nil
}
