package main

import (
	"context"
	"errors"
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
	"go.uber.org/zap"

	_ "github.com/noah-isme/teg-intake-api/api/swagger"
	"github.com/noah-isme/teg-intake-api/internal/handler"
	internalmiddleware "github.com/noah-isme/teg-intake-api/internal/middleware"
	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/internal/service"
	"github.com/noah-isme/teg-intake-api/pkg/config"
	"github.com/noah-isme/teg-intake-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teg-intake-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teg-intake-api/pkg/middleware/requestid"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

// @title TEG Intake API
// @version 1.0.0
// @description Enrollment intake for Proyecto and TEG submissions
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	runner := newRunner(cfg.Remote, metrics.RetryHooks(), logr)

	stores, err := buildBackends(ctx, cfg, runner, logr)
	if err != nil {
		logr.Fatal("failed to initialise storage", zap.Error(err))
	}
	defer stores.Close()

	receiptFiles, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Fatal("failed to initialise receipt storage", zap.Error(err))
	}

	validate := validator.New()
	location := loadLocation(cfg.Intake.Timezone, logr)

	windowSvc := service.NewWindowService(stores.windows, validate, logr, location, cfg.Intake.Programs)
	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		Username:          cfg.Admin.Username,
		PasswordHash:      cfg.Admin.PasswordHash,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if !authSvc.Enabled() {
		logr.Warn("ADMIN_PASSWORD_HASH is empty, admin login is disabled")
	}
	receiptSvc := service.NewReceiptService(
		receiptFiles,
		storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL),
		service.ReceiptConfig{APIPrefix: cfg.APIPrefix, CleanupInterval: cfg.Receipts.CleanupInterval},
		logr,
	)
	receiptSvc.StartCleanup(ctx)
	intakeSvc := service.NewIntakeService(
		windowSvc,
		stores.records,
		stores.documents,
		service.NewDossierService(logr),
		receiptSvc,
		stores.locker,
		metrics,
		service.IntakeConfig{Location: location, MaxFileSize: cfg.Uploads.MaxFileSizeBytes},
		logr,
	)
	exportSvc := service.NewRecordExportService(stores.records, validate, logr, nil, nil, nil)

	windowHandler := handler.NewWindowHandler(windowSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	submissionHandler := handler.NewSubmissionHandler(intakeSvc, receiptSvc, handler.UploadLimits{
		MaxFileSize:     cfg.Uploads.MaxFileSizeBytes,
		MaxRequestBytes: cfg.Uploads.MaxRequestBytes,
	})
	exportHandler := handler.NewRecordExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, stores.checks)

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/enrollment/status", windowHandler.Status)
	api.POST("/submissions", submissionHandler.Submit)
	api.GET("/receipts/:token", submissionHandler.DownloadReceipt)
	api.POST("/admin/login", authHandler.Login)

	admin := api.Group("/admin")
	admin.Use(internalmiddleware.JWT(authSvc), internalmiddleware.RequireRoles(models.RoleAdmin))
	admin.GET("/windows", windowHandler.List)
	admin.PUT("/windows", windowHandler.Update)
	admin.GET("/records/export", exportHandler.Export)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
