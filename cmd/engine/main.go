package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicworks/pulse/internal/api"
	"github.com/civicworks/pulse/internal/api/handler"
	"github.com/civicworks/pulse/internal/config"
	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/civicworks/pulse/internal/scheduler"
	"github.com/civicworks/pulse/internal/service"
	"github.com/civicworks/pulse/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(logger.DefaultConfig())
	defer logger.Sync()
	logger.SetDefault(appLogger)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatalf("Failed to initialize database")
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			appLogger.WithError(err).Fatalf("Failed to migrate database")
		}
	}

	deptRepo := repository.NewDepartmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	metricRepo := repository.NewMetricRepository(db)
	communityRepo := repository.NewCommunityRepository(db)

	metricsService := service.NewDepartmentMetricsService(deptRepo, requestRepo, metricRepo, appLogger, nil)
	communityService := service.NewCommunityStatsService(userRepo, requestRepo, communityRepo, appLogger, nil)
	leaderboardService := service.NewLeaderboardService(communityRepo, userRepo, requestRepo, metricRepo, deptRepo, appLogger, nil)

	ctx := context.Background()

	var exportService *service.ExportService
	if cfg.Export.Enabled {
		objectStorage, err := storage.NewS3Storage(&storage.S3Config{
			Endpoint:  cfg.Export.Endpoint,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
			UseSSL:    cfg.Export.UseSSL,
			Bucket:    cfg.Export.Bucket,
			Region:    cfg.Export.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatalf("Failed to initialize export storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatalf("Failed to ensure export bucket")
		}
		exportService = service.NewExportService(communityRepo, metricRepo, deptRepo, userRepo, objectStorage, appLogger, nil)
	}

	driver := func(ctx context.Context, period domain.PeriodType) error {
		if err := metricsService.CalculateForAllDepartments(ctx, period); err != nil {
			return err
		}
		if period.ValidForCommunity() {
			if err := communityService.CalculateForAllUsers(ctx, period); err != nil {
				return err
			}
		}
		if exportService != nil && cfg.Scheduler.ExportAfterRun {
			if _, err := exportService.ExportDepartmentMetrics(ctx, period); err != nil {
				return err
			}
		}
		return nil
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		appLogger.WithError(err).Fatalf("Failed to load scheduler timezone")
	}
	sched := scheduler.New(driver, nil, loc, appLogger)
	specs, err := jobSpecs(&cfg.Scheduler)
	if err != nil {
		appLogger.WithError(err).Fatalf("Failed to parse scheduler fire times")
	}
	sched.Initialize(specs)
	defer sched.StopAllJobs()

	router := api.NewRouter(api.RouterDeps{
		Config: cfg,
		Logger: appLogger,
		Health: handler.NewHealthHandler(),
		Stats:  handler.NewStatsHandler(leaderboardService),
		Admin:  handler.NewAdminHandler(sched, communityService, exportService),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Infof("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatalf("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Infof("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatalf("Server forced to shutdown")
	}

	appLogger.Infof("Server exited")
}

// jobSpecs builds the four recurring jobs from the configured fire times.
func jobSpecs(cfg *config.SchedulerConfig) ([]scheduler.JobSpec, error) {
	entries := []struct {
		name   string
		period domain.PeriodType
		at     string
	}{
		{scheduler.JobDaily, domain.PeriodDaily, cfg.DailyAt},
		{scheduler.JobWeekly, domain.PeriodWeekly, cfg.WeeklyAt},
		{scheduler.JobMonthly, domain.PeriodMonthly, cfg.MonthlyAt},
		{scheduler.JobQuarterly, domain.PeriodQuarterly, cfg.QuarterlyAt},
	}

	specs := make([]scheduler.JobSpec, 0, len(entries))
	for _, e := range entries {
		hour, minute, err := scheduler.ParseFireTime(e.at)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", e.name, err)
		}
		specs = append(specs, scheduler.JobSpec{
			Name:   e.name,
			Period: e.period,
			Hour:   hour,
			Minute: minute,
		})
	}
	return specs, nil
}
