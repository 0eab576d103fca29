package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"reportnotifier/internal/config"
	"reportnotifier/internal/executor"
	"reportnotifier/internal/exporter"
	"reportnotifier/internal/httpserver"
	"reportnotifier/internal/notifier"
	"reportnotifier/internal/repository"
	"reportnotifier/internal/service"
	"reportnotifier/pkg/circuitbreaker"
	"reportnotifier/pkg/db"
	"reportnotifier/pkg/logger"
	"reportnotifier/pkg/mq"
	"reportnotifier/pkg/otel"
	"reportnotifier/pkg/redis"
	"reportnotifier/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logger.NewLogger(cfg.Notifier.LogLevel)
	defer logr.Sync()

	logr.Info("Starting report-notifier...",
		zap.String("process", cfg.Notifier.ProcessName),
		zap.String("upstream", cfg.Notifier.UpstreamProcess),
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("export_dir", cfg.Notifier.ExportDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    cfg.Otel.ServiceName,
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
		SampleRatio:    cfg.Otel.SampleRatio,
	}, logr)
	if err != nil {
		logr.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, cfg.Notifier.SlowQuery, logr)
	if err != nil {
		logr.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Repositories
	reportRepo := repository.NewReportRepository(dbConn, logr)
	watermarkRepo := repository.NewWatermarkRepository(dbConn, logr)

	// Mail
	mailer, err := notifier.NewSMTPMailer(cfg.SMTP, circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()), logr)
	if err != nil {
		logr.Fatal("Failed to init SMTP mailer", zap.Error(err))
	}

	var opts []service.Option

	// Send dedup (optional)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("Failed to init Redis", zap.Error(err))
		}
		defer rdb.Close()
		opts = append(opts, service.WithSendGuard(util.NewDeduper(rdb, cfg.Notifier.DedupTTL, logr)))
		logr.Info("Notification dedup enabled", zap.String("redis_addr", cfg.Redis.Addr))
	}

	// Lifecycle events (optional)
	var broker httpserver.Broker
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			logr.Warn("MQ publisher unavailable, lifecycle events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			opts = append(opts, service.WithPublisher(publisher))
			broker = publisher
		}
	}

	orchestrator := service.NewOrchestrator(
		service.Options{
			ProcessName:     cfg.Notifier.ProcessName,
			UpstreamProcess: cfg.Notifier.UpstreamProcess,
		},
		watermarkRepo,
		reportRepo,
		executor.New(dbConn, cfg.Notifier.QueryTimeout, logr),
		exporter.NewCSVExporter(cfg.Notifier.ExportDir, logr),
		notifier.NewDispatcher(mailer, cfg.Notifier.ProcessName, cfg.Notifier.SendTimeout, logr),
		logr,
		opts...,
	)
	runner := service.NewRunner(orchestrator, dbConn, cfg.Notifier.PollInterval, logr)

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()

	// HTTP Server (health checks and metrics)
	router := httpserver.NewRouter(logr, dbConn, broker, runner)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logr.Info("report-notifier is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("Shutting down report-notifier gracefully...")

	// Stop polling; an interrupted cycle does not advance the watermark.
	cancel()
	<-runnerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logr.Info("HTTP server stopped")
	}

	logr.Info("report-notifier shutdown complete")
}
