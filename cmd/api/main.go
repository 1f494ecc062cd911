package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/maktab-hq/maktab-api/api/swagger"
	"github.com/maktab-hq/maktab-api/internal/handler"
	"github.com/maktab-hq/maktab-api/internal/middleware"
	"github.com/maktab-hq/maktab-api/internal/repository"
	"github.com/maktab-hq/maktab-api/internal/service"
	"github.com/maktab-hq/maktab-api/pkg/cache"
	"github.com/maktab-hq/maktab-api/pkg/config"
	"github.com/maktab-hq/maktab-api/pkg/database"
	"github.com/maktab-hq/maktab-api/pkg/jobs"
	"github.com/maktab-hq/maktab-api/pkg/logger"
	corsmiddleware "github.com/maktab-hq/maktab-api/pkg/middleware/cors"
	reqidmiddleware "github.com/maktab-hq/maktab-api/pkg/middleware/requestid"
	"github.com/maktab-hq/maktab-api/pkg/storage"
)

// @title Maktab API
// @version 1.0.0
// @description Multi-campus school management API: billing, payroll, exams, dashboards and reports
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metrics, cfg.Dashboard.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	payrollRepo := repository.NewPayrollRepository(db)
	examRepo := repository.NewExamRepository(db)
	classFeeRepo := repository.NewClassFeeRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	todoRepo := repository.NewTodoRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "maktab-api",
		Audience:           []string{"maktab-api"},
		SingleSession:      cfg.JWT.SingleSession,
	})

	notifications := service.NewNotificationService(
		service.NewLogDispatcher(logr),
		cfg.Notifications.Enabled,
		cfg.Notifications.WorkerConcurrency,
		logr,
	)

	billingSvc := service.NewBillingService(studentRepo, classFeeRepo, billingRepo, notifications, validate, logr)
	payrollSvc := service.NewPayrollService(employeeRepo, payrollRepo, calendarRepo, notifications, cfg.Payroll.ShortLeaveFactor, validate, logr)
	examSvc := service.NewExamService(examRepo, studentRepo, cacheSvc, cfg.Exams.CacheTTL, validate, logr)
	dashboardSvc := service.NewDashboardService(
		studentRepo, employeeRepo, billingRepo, payrollRepo,
		complaintRepo, todoRepo, calendarRepo,
		billingSvc, examSvc,
		cacheSvc, cfg.Dashboard.CacheTTL, logr,
	)
	complaintSvc := service.NewComplaintService(complaintRepo, dashboardSvc, validate, logr)
	todoSvc := service.NewTodoService(todoRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	employeeSvc := service.NewEmployeeService(employeeRepo, validate, logr)
	classFeeSvc := service.NewClassFeeService(classFeeRepo, studentRepo, validate, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, validate, logr)

	fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewTokenSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(billingSvc, payrollSvc, examSvc, fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, metrics, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications.Start(ctx)
	defer notifications.Stop()
	reportQueue.Start(ctx)
	defer reportQueue.Stop()
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metrics))

	handlers := handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Students:   handler.NewStudentHandler(studentSvc),
		Employees:  handler.NewEmployeeHandler(employeeSvc),
		Billing:    handler.NewBillingHandler(billingSvc),
		Payroll:    handler.NewPayrollHandler(payrollSvc),
		Exams:      handler.NewExamHandler(examSvc),
		Dashboards: handler.NewDashboardHandler(dashboardSvc),
		Complaints: handler.NewComplaintHandler(complaintSvc),
		Todos:      handler.NewTodoHandler(todoSvc),
		Calendar:   handler.NewCalendarHandler(calendarSvc),
		ClassFees:  handler.NewClassFeeHandler(classFeeSvc),
		Reports:    handler.NewReportHandler(reportSvc),
		Metrics:    handler.NewMetricsHandler(metrics),
	}

	metricsHandler := handlers.Metrics
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r, cfg.APIPrefix, handlers, authSvc, userRepo)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
