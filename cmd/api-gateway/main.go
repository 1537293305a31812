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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/hostelhub/residence-api/api/swagger"
	"github.com/hostelhub/residence-api/internal/handler"
	"github.com/hostelhub/residence-api/internal/middleware"
	"github.com/hostelhub/residence-api/internal/models"
	"github.com/hostelhub/residence-api/internal/notifier"
	"github.com/hostelhub/residence-api/internal/repository"
	"github.com/hostelhub/residence-api/internal/service"
	"github.com/hostelhub/residence-api/pkg/cache"
	"github.com/hostelhub/residence-api/pkg/config"
	"github.com/hostelhub/residence-api/pkg/database"
	"github.com/hostelhub/residence-api/pkg/logger"
	corsmiddleware "github.com/hostelhub/residence-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hostelhub/residence-api/pkg/middleware/requestid"
	"github.com/hostelhub/residence-api/pkg/storage"
)

// @title HostelHub Residence API
// @version 1.0.0
// @description Hostel residence management backend
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	targetingRepo := repository.NewTargetingRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	supervisorRepo := repository.NewSupervisorRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Observability and caching.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Engagement.CacheTTL, logr, true)

	// Auth.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "residence-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	// Announcement domain.
	targetingSvc := service.NewTargetingService(targetingRepo, announcementRepo, studentRepo, userRepo, logr, cfg.Targeting.MaxPreviewSize)
	announcementSvc := service.NewAnnouncementService(announcementRepo, nil, userRepo, cacheSvc, validate, logr)
	approvalSvc := service.NewApprovalService(approvalRepo, announcementRepo, announcementSvc, userRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, announcementSvc, validate, logr)

	senders := notifier.NewRegistry(
		notifier.NewEmailSender(cfg.SMTP, logr),
		notifier.NewInAppSender(),
		notifier.NewGatewaySender(models.ChannelSMS, logr),
		notifier.NewGatewaySender(models.ChannelPush, logr),
	)
	deliverySvc := service.NewDeliveryService(deliveryRepo, announcementSvc, targetingSvc, senders, service.DeliveryConfig{
		DefaultBatchSize: cfg.Delivery.DefaultBatchSize,
		Workers:          cfg.Delivery.WorkerConcurrency,
		MaxRetries:       cfg.Delivery.MaxRetryAttempts,
	}, validate, logr)
	announcementSvc.SetDeliveryStarter(deliverySvc)

	engagementSvc := service.NewEngagementService(engagementRepo, announcementSvc, targetingSvc, studentRepo, cacheRepo, cfg.Engagement.CacheTTL, validate, logr)

	// Residence operations.
	maintenanceSvc := service.NewMaintenanceService(maintenanceRepo, studentRepo, userRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, supervisorRepo, studentRepo, userRepo, validate, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportStore, exportSigner, cfg.Exports.SignedURLTTL, logr)

	templates, err := service.LoadPermissionTemplates(cfg.Supervisors.TemplateFile)
	if err != nil {
		logr.Fatal("failed to load permission templates", zap.Error(err))
	}
	supervisorSvc := service.NewSupervisorService(supervisorRepo, userRepo, cacheRepo, cfg.Dashboard.CacheTTL, templates, validate, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc, exportSvc)
	targetingHandler := handler.NewTargetingHandler(targetingSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	deliveryHandler := handler.NewDeliveryHandler(deliverySvc)
	engagementHandler := handler.NewEngagementHandler(engagementSvc)
	maintenanceHandler := handler.NewMaintenanceHandler(maintenanceSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)
	supervisorHandler := handler.NewSupervisorHandler(supervisorSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")
	api.GET("/exports/:token", exportHandler.Download)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	users := protected.Group("/users", middleware.Admins())
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", middleware.Audit(userRepo, "USER_CREATE", "user"), userHandler.Create)
		users.PUT("/:id/active", middleware.Audit(userRepo, "USER_SET_ACTIVE", "user"), userHandler.SetActive)
	}
	protected.GET("/audit", middleware.Admins(), userHandler.AuditTrail)
	protected.GET("/metrics/snapshot", middleware.Admins(), metricsHandler.Snapshot)

	announcements := protected.Group("/announcements")
	{
		announcements.GET("", announcementHandler.List)
		announcements.GET("/stats", middleware.Staff(), announcementHandler.Stats)
		announcements.GET("/export", middleware.Staff(), announcementHandler.Export)
		announcements.POST("", middleware.Staff(), announcementHandler.Create)
		announcements.POST("/bulk-delete", middleware.Staff(), announcementHandler.BulkDelete)
		announcements.POST("/targeting/bulk", middleware.Staff(), targetingHandler.BulkApply)
		announcements.GET("/:id", announcementHandler.Get)
		announcements.PUT("/:id", middleware.Staff(), announcementHandler.Update)
		announcements.POST("/:id/publish", middleware.Staff(), announcementHandler.Publish)
		announcements.POST("/:id/unpublish", middleware.Staff(), announcementHandler.Unpublish)
		announcements.POST("/:id/archive", middleware.Staff(), announcementHandler.Archive)
		announcements.POST("/:id/unarchive", middleware.Staff(), announcementHandler.Unarchive)

		announcements.GET("/:id/targeting", middleware.Staff(), targetingHandler.Summary)
		announcements.PUT("/:id/targeting", middleware.Staff(), targetingHandler.Apply)
		announcements.DELETE("/:id/targeting", middleware.Staff(), targetingHandler.Clear)
		announcements.POST("/:id/targeting/preview", middleware.Staff(), targetingHandler.Preview)

		announcements.POST("/:id/approval", middleware.Staff(), approvalHandler.Submit)
		announcements.GET("/:id/approval/history", middleware.Staff(), approvalHandler.History)

		announcements.POST("/:id/schedule", middleware.Staff(), scheduleHandler.Create)
		announcements.GET("/:id/schedule", middleware.Staff(), scheduleHandler.Get)

		announcements.POST("/:id/delivery", middleware.Staff(), deliveryHandler.Start)
		announcements.GET("/:id/delivery", middleware.Staff(), deliveryHandler.Report)
		announcements.DELETE("/:id/delivery", middleware.Staff(), deliveryHandler.Cancel)
		announcements.POST("/:id/delivery/pause", middleware.Staff(), deliveryHandler.Pause)
		announcements.POST("/:id/delivery/resume", middleware.Staff(), deliveryHandler.Resume)
		announcements.POST("/:id/delivery/retry", middleware.Staff(), deliveryHandler.RetryFailed)

		announcements.POST("/:id/read", engagementHandler.MarkRead)
		announcements.POST("/:id/acknowledge", engagementHandler.Acknowledge)
		announcements.GET("/:id/engagement", middleware.Staff(), engagementHandler.Metrics)
		announcements.GET("/:id/engagement/trend", middleware.Staff(), engagementHandler.Trend)
		announcements.GET("/:id/engagement/unacknowledged", middleware.Staff(), engagementHandler.Unacknowledged)
	}

	approvals := protected.Group("/approvals", middleware.Staff())
	{
		approvals.GET("", approvalHandler.Queue)
		approvals.POST("/bulk-decision", approvalHandler.BulkDecide)
		approvals.POST("/:id/decision", middleware.Audit(userRepo, models.AuditActionApprovalDecision, "approval_request"), approvalHandler.Decide)
		approvals.POST("/:id/withdraw", approvalHandler.Withdraw)
	}

	schedules := protected.Group("/schedules", middleware.Staff())
	{
		schedules.GET("", scheduleHandler.List)
		schedules.PUT("/:id", scheduleHandler.Reschedule)
		schedules.DELETE("/:id", scheduleHandler.Cancel)
		schedules.POST("/:id/publish-now", scheduleHandler.PublishNow)
	}

	engagement := protected.Group("/engagement")
	{
		engagement.GET("/me", engagementHandler.StudentSummary)
		engagement.GET("/analytics", middleware.Staff(), engagementHandler.HostelAnalytics)
	}

	if cfg.Maintenance.Enabled {
		maintenance := protected.Group("/maintenance")
		{
			maintenance.GET("", maintenanceHandler.List)
			maintenance.POST("", maintenanceHandler.Create)
			maintenance.GET("/costs", middleware.Staff(), maintenanceHandler.CostSummary)
			maintenance.GET("/preventive", middleware.Staff(), maintenanceHandler.ListPreventive)
			maintenance.POST("/preventive", middleware.Staff(), maintenanceHandler.CreatePreventive)
			maintenance.PUT("/preventive/:id/active", middleware.Staff(), maintenanceHandler.SetPreventiveActive)
			maintenance.GET("/:id", maintenanceHandler.Get)
			maintenance.PUT("/:id", maintenanceHandler.Update)
			maintenance.DELETE("/:id", maintenanceHandler.Cancel)
			maintenance.POST("/:id/decision", middleware.Staff(), maintenanceHandler.Decide)
			maintenance.POST("/:id/assign", middleware.Staff(), maintenanceHandler.Assign)
			maintenance.POST("/:id/complete", middleware.Staff(), maintenanceHandler.Complete)
		}
	}

	attendance := protected.Group("/attendance")
	{
		attendance.GET("", attendanceHandler.List)
		attendance.POST("", middleware.Staff(), attendanceHandler.Mark)
		attendance.GET("/report", middleware.Staff(), attendanceHandler.DailyReport)
		attendance.GET("/report/export", middleware.Staff(), attendanceHandler.Export)
		attendance.GET("/absentees", middleware.Staff(), attendanceHandler.ConsecutiveAbsentees)
		attendance.GET("/students/:id/summary", attendanceHandler.Summary)
	}

	if cfg.Supervisors.Enabled {
		supervisors := protected.Group("/supervisors")
		{
			supervisors.GET("", middleware.Staff(), supervisorHandler.List)
			supervisors.POST("", middleware.Admins(), supervisorHandler.Create)
			if cfg.Dashboard.Enabled {
				supervisors.GET("/me/dashboard", supervisorHandler.Dashboard)
			}
			supervisors.GET("/:id", middleware.Staff(), supervisorHandler.Get)
			supervisors.GET("/:id/performance", middleware.Staff(), supervisorHandler.Performance)
			supervisors.PUT("/:id/permissions", middleware.Admins(), supervisorHandler.UpdatePermissions)
			supervisors.PUT("/:id/floors", middleware.Admins(), supervisorHandler.UpdateFloors)
			supervisors.PUT("/:id/active", middleware.Admins(), supervisorHandler.SetActive)
		}
	}

	// Background workers.
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliverySvc.Start(rootCtx)

	if cfg.Scheduler.Enabled {
		go runScheduler(rootCtx, cfg.Scheduler.TickInterval, logr, scheduleSvc, deliverySvc, maintenanceSvc, announcementSvc, exportSvc)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	cancel()
	deliverySvc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// runScheduler drives all time-based work: due publications, expiry sweeps,
// auto-resumed deliveries and preventive maintenance generation.
func runScheduler(ctx context.Context, interval time.Duration, logr *zap.Logger, schedules *service.ScheduleService, delivery *service.DeliveryService, maintenance *service.MaintenanceService, announcements *service.AnnouncementService, exports *service.ExportService) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if fired, err := schedules.RunDue(ctx, 100); err != nil {
				logr.Warn("scheduled publication tick failed", zap.Error(err))
			} else if fired > 0 {
				logr.Info("published scheduled announcements", zap.Int("count", fired))
			}

			if expired, err := announcements.ExpireDue(ctx); err != nil {
				logr.Warn("expiry sweep failed", zap.Error(err))
			} else if expired > 0 {
				logr.Info("expired announcements", zap.Int("count", expired))
			}

			if resumed, err := delivery.ResumeAutoPaused(ctx); err != nil {
				logr.Warn("delivery auto-resume failed", zap.Error(err))
			} else if resumed > 0 {
				logr.Info("auto-resumed deliveries", zap.Int("count", resumed))
			}

			if created, err := maintenance.RunPreventiveDue(ctx, 100); err != nil {
				logr.Warn("preventive maintenance tick failed", zap.Error(err))
			} else if created > 0 {
				logr.Info("generated preventive maintenance requests", zap.Int("count", created))
			}

			exports.Cleanup()
		}
	}
}
