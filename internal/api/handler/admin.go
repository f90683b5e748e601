package handler

import (
	"net/http"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/scheduler"
	"github.com/civicworks/pulse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the operational endpoints: manual calculation
// triggers, job registry control and exports.
type AdminHandler struct {
	scheduler *scheduler.Scheduler
	community *service.CommunityStatsService
	export    *service.ExportService
}

// NewAdminHandler creates a new admin handler. export may be nil when
// object-storage export is disabled.
func NewAdminHandler(sched *scheduler.Scheduler, community *service.CommunityStatsService, export *service.ExportService) *AdminHandler {
	return &AdminHandler{
		scheduler: sched,
		community: community,
		export:    export,
	}
}

type calculateRequest struct {
	Period string `json:"period" binding:"required"`
}

// Calculate handles POST /api/v1/admin/calculate
// Runs the department calculation for one period outside the schedule.
func (h *AdminHandler) Calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period is required"})
		return
	}

	period, err := domain.ParsePeriodType(req.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period type"})
		return
	}
	if err := h.scheduler.TriggerImmediateCalculation(c.Request.Context(), period); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "completed",
		"period": period,
	})
}

// CalculateUserStats handles POST /api/v1/users/:id/stats/calculate
func (h *AdminHandler) CalculateUserStats(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period is required"})
		return
	}
	period, err := domain.ParsePeriodType(req.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period type"})
		return
	}

	start, end := period.Window(time.Now())
	snap, err := h.community.CalculateUserStats(c.Request.Context(), userID, period, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// JobStatus handles GET /api/v1/admin/jobs
func (h *AdminHandler) JobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.scheduler.GetJobStatus()})
}

// StopJob handles POST /api/v1/admin/jobs/:name/stop
func (h *AdminHandler) StopJob(c *gin.Context) {
	name := c.Param("name")
	h.scheduler.StopJob(name)
	c.JSON(http.StatusOK, gin.H{"jobs": h.scheduler.GetJobStatus()})
}

// StartJob handles POST /api/v1/admin/jobs/:name/start
func (h *AdminHandler) StartJob(c *gin.Context) {
	name := c.Param("name")
	h.scheduler.StartJob(name)
	c.JSON(http.StatusOK, gin.H{"jobs": h.scheduler.GetJobStatus()})
}

// StopAllJobs handles POST /api/v1/admin/jobs/stop-all
func (h *AdminHandler) StopAllJobs(c *gin.Context) {
	h.scheduler.StopAllJobs()
	c.JSON(http.StatusOK, gin.H{"jobs": h.scheduler.GetJobStatus()})
}

// RestartAllJobs handles POST /api/v1/admin/jobs/restart-all
func (h *AdminHandler) RestartAllJobs(c *gin.Context) {
	h.scheduler.RestartAllJobs()
	c.JSON(http.StatusOK, gin.H{"jobs": h.scheduler.GetJobStatus()})
}

type exportRequest struct {
	Target string `json:"target" binding:"required"` // leaderboard, department_metrics
	Period string `json:"period" binding:"required"`
}

// Export handles POST /api/v1/admin/export
func (h *AdminHandler) Export(c *gin.Context) {
	if h.export == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export is disabled"})
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target and period are required"})
		return
	}
	period, err := domain.ParsePeriodType(req.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period type"})
		return
	}

	var key string
	switch req.Target {
	case "leaderboard":
		key, err = h.export.ExportLeaderboard(c.Request.Context(), period)
	case "department_metrics":
		key, err = h.export.ExportDepartmentMetrics(c.Request.Context(), period)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown export target"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "uploaded",
		"key":    key,
	})
}
