package domain

import (
	"time"

	"github.com/google/uuid"
)

// CommunityStatsSnapshot is one user's contribution record for a period
// window. The (user, period, period_start) key is upserted in place; rank is
// reassigned for every snapshot sharing (period_type, period_start) whenever
// any one of them is recalculated.
type CommunityStatsSnapshot struct {
	ID          uuid.UUID  `gorm:"type:text;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:text;not null;uniqueIndex:idx_community_snapshots_key" json:"user_id"`
	PeriodType  PeriodType `gorm:"type:text;not null;uniqueIndex:idx_community_snapshots_key;index:idx_community_snapshots_period" json:"period_type"`
	PeriodStart time.Time  `gorm:"not null;uniqueIndex:idx_community_snapshots_key" json:"period_start"`
	PeriodEnd   time.Time  `gorm:"not null" json:"period_end"`

	RequestsSubmitted int `json:"requests_submitted"`
	RequestsApproved  int `json:"requests_approved"`
	RequestsResolved  int `json:"requests_resolved"`
	CommentsPosted    int `json:"comments_posted"`
	UpvotesReceived   int `json:"upvotes_received"`
	UpvotesGiven      int `json:"upvotes_given"`

	ApprovalRate      float64 `json:"approval_rate"`      // 0-100
	ResolutionRate    float64 `json:"resolution_rate"`    // 0-100
	SatisfactionScore float64 `json:"satisfaction_score"` // 0-100

	ContributionScore float64 `json:"contribution_score"` // unbounded points
	EngagementScore   float64 `json:"engagement_score"`
	QualityScore      float64 `json:"quality_score"` // ~0-100
	OverallScore      float64 `gorm:"index:idx_community_snapshots_score" json:"overall_score"`

	Rank         int       `json:"rank"`
	PreviousRank int       `json:"previous_rank"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// TableName returns the database table name for CommunityStatsSnapshot.
func (CommunityStatsSnapshot) TableName() string {
	return "community_stats_snapshots"
}

// RankDelta returns how many positions the user moved since the previous
// recomputation; positive means the user climbed.
func (s *CommunityStatsSnapshot) RankDelta() int {
	if s.PreviousRank == 0 {
		return 0
	}
	return s.PreviousRank - s.Rank
}

// LeaderboardEntry is one row of the read-side leaderboard projection.
// Rank is the persisted canonical rank; Position is the page-local
// offset+index+1 value the legacy read path reported.
type LeaderboardEntry struct {
	Position int                    `json:"position"`
	UserName string                 `json:"user_name"`
	Snapshot CommunityStatsSnapshot `json:"snapshot"`
}

// CategoryContributor is one row of a category-scoped contributor rollup.
type CategoryContributor struct {
	UserID       uuid.UUID `json:"user_id"`
	UserName     string    `json:"user_name"`
	RequestCount int64     `json:"request_count"`
	OverallScore float64   `json:"overall_score"`
	Rank         int       `json:"rank"`
}

// TrendPoint is one snapshot value on a metric trend series.
type TrendPoint struct {
	PeriodStart time.Time `json:"period_start"`
	Value       float64   `json:"value"`
}

// TrendSeries is the min/max/average rollup of one metric over a date range.
type TrendSeries struct {
	MetricType MetricType   `json:"metric_type"`
	PeriodType PeriodType   `json:"period_type"`
	Points     []TrendPoint `json:"points"`
	Min        float64      `json:"min"`
	Max        float64      `json:"max"`
	Average    float64      `json:"average"`
}

// StatsSummary aggregates a whole (period) snapshot population.
type StatsSummary struct {
	PeriodType          PeriodType `json:"period_type"`
	Participants        int64      `json:"participants"`
	TotalSubmitted      int64      `json:"total_submitted"`
	TotalResolved       int64      `json:"total_resolved"`
	TotalComments       int64      `json:"total_comments"`
	TotalUpvotes        int64      `json:"total_upvotes"`
	AverageOverallScore float64    `json:"average_overall_score"`
	TopOverallScore     float64    `json:"top_overall_score"`
}
