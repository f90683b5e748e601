package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/civicworks/pulse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatsHandler serves the read-only projections: leaderboard pages, user
// histories, category rollups, trends and summaries.
type StatsHandler struct {
	leaderboard *service.LeaderboardService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(leaderboard *service.LeaderboardService) *StatsHandler {
	return &StatsHandler{leaderboard: leaderboard}
}

// Leaderboard handles GET /api/v1/leaderboard
// Query params: period, limit, offset, min_requests, min_score
func (h *StatsHandler) Leaderboard(c *gin.Context) {
	period, ok := queryPeriod(c, domain.PeriodAllTime)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var filters repository.LeaderboardFilters
	if raw := c.Query("min_requests"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filters.MinRequests = v
		}
	}
	if raw := c.Query("min_score"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filters.MinOverallScore = v
		}
	}

	entries, err := h.leaderboard.GetLeaderboard(c.Request.Context(), period, limit, offset, filters)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":  period,
		"entries": entries,
		"count":   len(entries),
	})
}

// UserStats handles GET /api/v1/users/:id/stats
func (h *StatsHandler) UserStats(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	period, ok := queryPeriod(c, domain.PeriodAllTime)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	history, err := h.leaderboard.GetUserStats(c.Request.Context(), userID, period, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"period":  period,
		"history": history,
	})
}

// CategoryStats handles GET /api/v1/stats/categories/:category
func (h *StatsHandler) CategoryStats(c *gin.Context) {
	category := c.Param("category")
	period, ok := queryPeriod(c, domain.PeriodMonthly)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	contributors, err := h.leaderboard.GetStatsByCategory(c.Request.Context(), category, period, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category":     category,
		"period":       period,
		"contributors": contributors,
	})
}

// Trends handles GET /api/v1/stats/trends
// Query params: department_id, metric, period, from, to (RFC3339)
func (h *StatsHandler) Trends(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Query("department_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department_id"})
		return
	}
	metric := domain.MetricType(c.Query("metric"))
	period, ok := queryPeriod(c, domain.PeriodDaily)
	if !ok {
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = t
		}
	}

	series, err := h.leaderboard.GetTrendingStats(c.Request.Context(), departmentID, metric, period, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, series)
}

// Summary handles GET /api/v1/stats/summary
func (h *StatsHandler) Summary(c *gin.Context) {
	period, ok := queryPeriod(c, domain.PeriodAllTime)
	if !ok {
		return
	}

	summary, err := h.leaderboard.GetStatsSummary(c.Request.Context(), period)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":  period,
		"summary": summary,
	})
}

// DepartmentMetrics handles GET /api/v1/departments/:id/metrics
func (h *StatsHandler) DepartmentMetrics(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department ID"})
		return
	}
	period, ok := queryPeriod(c, domain.PeriodMonthly)
	if !ok {
		return
	}

	snapshots, err := h.leaderboard.GetDepartmentMetrics(c.Request.Context(), departmentID, period)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"department_id": departmentID,
		"period":        period,
		"metrics":       snapshots,
	})
}

// queryPeriod parses the period query param, responding 400 on unknown
// labels. The second return is false when the response was already written.
func queryPeriod(c *gin.Context, fallback domain.PeriodType) (domain.PeriodType, bool) {
	period, err := domain.ParsePeriodType(c.DefaultQuery("period", string(fallback)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period type"})
		return "", false
	}
	return period, true
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDepartmentNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnknownPeriodType),
		errors.Is(err, domain.ErrUnknownMetricType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
