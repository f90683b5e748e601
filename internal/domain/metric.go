package domain

import (
	"time"

	"github.com/google/uuid"
)

// MetricType identifies one persisted department KPI.
type MetricType string

const (
	MetricAvgResolutionTime   MetricType = "avg_resolution_time"
	MetricSLAComplianceRate   MetricType = "sla_compliance_rate"
	MetricFirstCallResolution MetricType = "first_call_resolution_rate"
	MetricCitizenSatisfaction MetricType = "citizen_satisfaction_score"
	MetricRequestVolume       MetricType = "request_volume"
	MetricEscalationRate      MetricType = "escalation_rate"
	MetricStaffUtilization    MetricType = "staff_utilization"
)

// MetricTypes lists every persisted metric type in storage order.
func MetricTypes() []MetricType {
	return []MetricType{
		MetricAvgResolutionTime,
		MetricSLAComplianceRate,
		MetricFirstCallResolution,
		MetricCitizenSatisfaction,
		MetricRequestVolume,
		MetricEscalationRate,
		MetricStaffUtilization,
	}
}

// Valid reports whether m is a known metric type.
func (m MetricType) Valid() bool {
	switch m {
	case MetricAvgResolutionTime, MetricSLAComplianceRate, MetricFirstCallResolution,
		MetricCitizenSatisfaction, MetricRequestVolume, MetricEscalationRate,
		MetricStaffUtilization:
		return true
	}
	return false
}

// MetricSnapshot is one persisted KPI value for a department and window.
// The (department, metric, period, period_start) key is upserted in place on
// recalculation; no history is retained.
type MetricSnapshot struct {
	ID           uuid.UUID  `gorm:"type:text;primaryKey" json:"id"`
	DepartmentID uuid.UUID  `gorm:"type:text;not null;uniqueIndex:idx_metric_snapshots_key" json:"department_id"`
	MetricType   MetricType `gorm:"type:text;not null;uniqueIndex:idx_metric_snapshots_key" json:"metric_type"`
	PeriodType   PeriodType `gorm:"type:text;not null;uniqueIndex:idx_metric_snapshots_key" json:"period_type"`
	PeriodStart  time.Time  `gorm:"not null;uniqueIndex:idx_metric_snapshots_key" json:"period_start"`
	PeriodEnd    time.Time  `gorm:"not null" json:"period_end"`
	Value        float64    `json:"value"`
	CalculatedAt time.Time  `json:"calculated_at"`
}

// TableName returns the database table name for MetricSnapshot.
func (MetricSnapshot) TableName() string {
	return "metric_snapshots"
}

// AgentWorkloadReport is the per-staff workload slice of a department
// report. It is produced fresh on every report and never persisted.
type AgentWorkloadReport struct {
	UserID              uuid.UUID `json:"user_id"`
	UserName            string    `json:"user_name"`
	ActiveRequests      int       `json:"active_requests"`
	CompletedRequests   int       `json:"completed_requests"`
	AverageHandlingTime float64   `json:"average_handling_time"` // hours
	WorkloadScore       float64   `json:"workload_score"`
	UtilizationRate     float64   `json:"utilization_rate"` // percent, capped at 150
}

// DepartmentReport bundles every KPI computed for one department over one
// window. The seven scalar metrics are persisted as MetricSnapshot rows;
// workloads and breakdowns are returned to the caller only.
type DepartmentReport struct {
	DepartmentID             uuid.UUID             `json:"department_id"`
	DepartmentName           string                `json:"department_name"`
	PeriodType               PeriodType            `json:"period_type"`
	PeriodStart              time.Time             `json:"period_start"`
	PeriodEnd                time.Time             `json:"period_end"`
	AverageResolutionTime    float64               `json:"average_resolution_time"` // hours
	SLAComplianceRate        float64               `json:"sla_compliance_rate"`
	FirstCallResolutionRate  float64               `json:"first_call_resolution_rate"`
	CitizenSatisfactionScore float64               `json:"citizen_satisfaction_score"`
	RequestVolume            float64               `json:"request_volume"`
	EscalationRate           float64               `json:"escalation_rate"`
	StaffUtilization         float64               `json:"staff_utilization"`
	AgentWorkloads           []AgentWorkloadReport `json:"agent_workloads"`
	CategoryBreakdown        map[string]int64      `json:"category_breakdown"`
	PriorityBreakdown        map[Priority]int64    `json:"priority_breakdown"`
	GeneratedAt              time.Time             `json:"generated_at"`
}

// MetricValue returns the scalar value for one persisted metric type.
func (r *DepartmentReport) MetricValue(m MetricType) float64 {
	switch m {
	case MetricAvgResolutionTime:
		return r.AverageResolutionTime
	case MetricSLAComplianceRate:
		return r.SLAComplianceRate
	case MetricFirstCallResolution:
		return r.FirstCallResolutionRate
	case MetricCitizenSatisfaction:
		return r.CitizenSatisfactionScore
	case MetricRequestVolume:
		return r.RequestVolume
	case MetricEscalationRate:
		return r.EscalationRate
	case MetricStaffUtilization:
		return r.StaffUtilization
	default:
		return 0
	}
}
