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

	_ "github.com/noah-isme/wifi-presence-api/api/swagger"
	"github.com/noah-isme/wifi-presence-api/internal/handler"
	"github.com/noah-isme/wifi-presence-api/internal/middleware"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/internal/repository"
	"github.com/noah-isme/wifi-presence-api/internal/service"
	"github.com/noah-isme/wifi-presence-api/internal/stream"
	"github.com/noah-isme/wifi-presence-api/pkg/cache"
	"github.com/noah-isme/wifi-presence-api/pkg/config"
	"github.com/noah-isme/wifi-presence-api/pkg/database"
	"github.com/noah-isme/wifi-presence-api/pkg/export"
	"github.com/noah-isme/wifi-presence-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/wifi-presence-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/wifi-presence-api/pkg/middleware/requestid"
)

// @title WiFi Presence API
// @version 1.0.0
// @description Capture ingest, session finalization and anomaly scoring for WiFi based attendance
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "wifi-presence:", logr),
		metricsSvc,
		cfg.Attendance.CacheTTL,
		logr,
		cfg.Redis.Enabled,
	)

	sightingRepo := repository.NewSightingRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	validate := validator.New()
	scheduleSvc := service.NewScheduleService(scheduleRepo, cacheSvc, cfg.Schedule.CacheTTL, cfg.Capture.Location, logr)
	classifierSvc := service.NewClassifierService(cfg.Classifier, metricsSvc, logr)
	liveAggregator := service.NewLiveAggregator(cfg.Live.EnabledOnStart, metricsSvc)
	ingestSvc := service.NewIngestService(sightingRepo, sightingRepo, liveAggregator, metricsSvc, cfg.Capture.DefaultRSSI, logr)
	attendanceSvc := service.NewAttendanceService(
		attendanceRepo,
		cacheSvc,
		cfg.Attendance.CacheTTL,
		cfg.Attendance.DefaultLimit,
		logr,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)
	deviceSvc := service.NewDeviceService(deviceRepo, validate, logr)

	var publisher service.AttendancePublisher
	var consumer *stream.SightingConsumer
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := stream.NewAttendancePublisher(cfg.Kafka.Brokers, cfg.Kafka.AttendanceTopic, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to init attendance publisher", "error", err)
		}
		defer kafkaPublisher.Close() //nolint:errcheck
		publisher = kafkaPublisher

		consumer, err = stream.NewSightingConsumer(stream.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.SightingsTopic,
			GroupID: cfg.Kafka.GroupID,
		}, ingestSvc, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to init sighting consumer", "error", err)
		}
	}

	finalizerSvc := service.NewFinalizerService(
		sightingRepo,
		attendanceRepo,
		classifierSvc,
		scheduleSvc,
		deviceRepo,
		service.FinalizerOptions{
			GroupBy:    cfg.Finalizer.GroupBy,
			RSSIRange:  models.RSSIRange{Min: cfg.Capture.RSSIMin, Max: cfg.Capture.RSSIMax},
			Cache:      cacheSvc,
			Publisher:  publisher,
			Metrics:    metricsSvc,
			QueueRetry: cfg.Finalizer.QueueRetry,
			RetryDelay: cfg.Finalizer.RetryDelay,
			Logger:     logr,
		},
	)
	finalizerSvc.Start(ctx)
	defer finalizerSvc.Stop()

	if consumer != nil {
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logr.Error("sighting consumer stopped", zap.Error(err))
			}
		}()
		defer consumer.Close() //nolint:errcheck
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, classifierSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	captureHandler := handler.NewCaptureHandler(ingestSvc, validate, cfg.Capture.DefaultAPID, cfg.Capture.AllowDefaultAP)
	sessionHandler := handler.NewSessionHandler(finalizerSvc)
	liveHandler := handler.NewLiveHandler(liveAggregator)
	classifierHandler := handler.NewClassifierHandler(classifierSvc, validate)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	deviceHandler := handler.NewDeviceHandler(deviceSvc)

	api := r.Group(cfg.APIPrefix)
	{
		captures := api.Group("/captures")
		captures.POST("", captureHandler.Record)
		captures.GET("/status", captureHandler.Status)

		sessions := api.Group("/sessions")
		sessions.POST("/finalize", sessionHandler.Finalize)
		sessions.GET("/finalize/jobs/:id", sessionHandler.JobStatus)

		live := api.Group("/live")
		live.GET("", liveHandler.Snapshot)
		live.POST("/start", liveHandler.Start)
		live.POST("/stop", liveHandler.Stop)

		api.POST("/classifier/test", classifierHandler.Test)

		attendance := api.Group("/attendance")
		attendance.GET("", attendanceHandler.List)
		attendance.GET("/export", attendanceHandler.Export)

		devices := api.Group("/devices")
		devices.GET("", deviceHandler.List)
		devices.POST("", deviceHandler.Register)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
