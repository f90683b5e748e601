package service

import (
	"math"
	"time"

	"github.com/civicworks/pulse/internal/domain"
)

const (
	// defaultHandlingHours substitutes for staff with no completed requests
	// when projecting utilization.
	defaultHandlingHours = 2.0

	// workWeekHours is the utilization denominator.
	workWeekHours = 40.0

	// maxUtilizationPct caps the projected utilization.
	maxUtilizationPct = 150.0

	// ageMultiplierCap caps the staleness multiplier at 1+cap = 3x.
	ageMultiplierCap = 2.0
)

// averageHandlingHours returns the mean creation-to-closure duration in
// hours over closed requests, 0 if none are closed.
func averageHandlingHours(completed []domain.ServiceRequest) float64 {
	var total float64
	var closed int
	for i := range completed {
		if completed[i].ClosedAt == nil {
			continue
		}
		total += completed[i].ResolutionHours()
		closed++
	}
	if closed == 0 {
		return 0
	}
	return total / float64(closed)
}

// workloadScore weighs a staff member's open requests by priority and age:
// sum of priorityWeight * (1 + min(ageDays/7, 2)). Older and more urgent
// work raises the score; the age multiplier saturates after two weeks.
func workloadScore(active []domain.ServiceRequest, now time.Time) float64 {
	var score float64
	for i := range active {
		ageDays := now.Sub(active[i].CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		multiplier := 1 + math.Min(ageDays/7, ageMultiplierCap)
		score += active[i].Priority.Weight() * multiplier
	}
	return score
}

// utilizationRate projects active work against a 40-hour week as a
// percentage, capped at 150. Staff without handling history get a 2-hour
// default per active request.
func utilizationRate(activeCount int, avgHandlingHours float64) float64 {
	if activeCount == 0 {
		return 0
	}
	handling := avgHandlingHours
	if handling == 0 {
		handling = defaultHandlingHours
	}
	rate := float64(activeCount) * handling / workWeekHours * 100
	return math.Min(rate, maxUtilizationPct)
}

// buildWorkloadReport assembles the ephemeral per-staff workload report.
func buildWorkloadReport(user *domain.User, active, completed []domain.ServiceRequest, now time.Time) domain.AgentWorkloadReport {
	avgHandling := averageHandlingHours(completed)
	return domain.AgentWorkloadReport{
		UserID:              user.ID,
		UserName:            user.Name,
		ActiveRequests:      len(active),
		CompletedRequests:   len(completed),
		AverageHandlingTime: avgHandling,
		WorkloadScore:       workloadScore(active, now),
		UtilizationRate:     utilizationRate(len(active), avgHandling),
	}
}
