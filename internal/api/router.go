package api

import (
	"github.com/civicworks/pulse/internal/api/handler"
	"github.com/civicworks/pulse/internal/api/middleware"
	"github.com/civicworks/pulse/internal/config"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles everything the router wires into handlers.
type RouterDeps struct {
	Config *config.Config
	Logger *logger.Logger
	Health *handler.HealthHandler
	Stats  *handler.StatsHandler
	Admin  *handler.AdminHandler
}

// NewRouter builds the Gin engine with middleware and all routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(deps.Config.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  deps.Config.Server.CORS.AllowedOrigins,
		AllowAllOrigins: deps.Config.Server.CORS.AllowAllOrigins,
	}))

	router.GET("/health", deps.Health.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/leaderboard", deps.Stats.Leaderboard)
		v1.GET("/users/:id/stats", deps.Stats.UserStats)
		v1.POST("/users/:id/stats/calculate", deps.Admin.CalculateUserStats)
		v1.GET("/stats/categories/:category", deps.Stats.CategoryStats)
		v1.GET("/stats/trends", deps.Stats.Trends)
		v1.GET("/stats/summary", deps.Stats.Summary)
		v1.GET("/departments/:id/metrics", deps.Stats.DepartmentMetrics)

		admin := v1.Group("/admin")
		{
			admin.POST("/calculate", deps.Admin.Calculate)
			admin.GET("/jobs", deps.Admin.JobStatus)
			admin.POST("/jobs/stop-all", deps.Admin.StopAllJobs)
			admin.POST("/jobs/restart-all", deps.Admin.RestartAllJobs)
			admin.POST("/jobs/:name/stop", deps.Admin.StopJob)
			admin.POST("/jobs/:name/start", deps.Admin.StartJob)
			admin.POST("/export", deps.Admin.Export)
		}
	}

	return router
}
