package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"court_case_service/config"
	"court_case_service/db"
	"court_case_service/handlers"
	"court_case_service/logging"
	"court_case_service/middleware"
	"court_case_service/models"
	"court_case_service/services"
	"court_case_service/services/jobs"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := logging.New(cfg.Environment)
	defer logger.Sync()

	// Initialize database
	if err := db.Initialize(db.Options{
		Path:        cfg.DBPath,
		TursoURL:    cfg.TursoDatabaseURL,
		TursoToken:  cfg.TursoAuthToken,
		Environment: cfg.Environment,
		Logger:      logger,
	}); err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(
		&models.Court{},
		&models.CourtCase{},
		&models.Hearing{},
		&models.Offence{},
		&models.Offender{},
		&models.Defendant{},
		&models.DefendantOffence{},
		&models.AuditLog{},
	); err != nil {
		logger.Fatalw("Failed to run migrations", "error", err)
	}

	store := services.NewGormStore(db.DB)
	if err := services.SeedCourts(context.Background(), store.Courts(), cfg.DefaultCourts, logger); err != nil {
		logger.Fatalw("Failed to seed courts", "error", err)
	}

	// Telemetry goes to NATS when configured, to the log otherwise
	var (
		sink services.EventSink
		conn *nats.Conn
	)
	if cfg.NATSURL != "" {
		var err error
		if conn, err = services.ConnectNATS(cfg.NATSURL, logger); err != nil {
			logger.Fatalw("Failed to connect to NATS", "error", err)
		}
		sink = services.NewNATSEventSink(conn, cfg.TelemetrySubject)
	}
	telemetry := services.NewTelemetryService(sink, logger)

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	archive := services.NewPayloadArchive(services.NewStorageProvider(cfg, logger), cfg.ArchiveEnabled, logger)
	auditor := services.NewGormAuditor(db.DB, logger.Named("audit"))

	service := services.NewCourtCaseService(services.CourtCaseServiceConfig{
		Store:       store,
		Telemetry:   telemetry,
		Auditor:     auditor,
		Metrics:     metrics,
		Logger:      logger,
		MaxAttempts: cfg.LockRetryAttempts,
	})

	// Background jobs
	scheduler, err := jobs.StartScheduler(cfg.IntegritySweepSchedule, jobs.NewIntegritySweep(service, telemetry, logger))
	if err != nil {
		logger.Fatalw("Failed to start scheduler", "error", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.AuditContext())

	handlers.NewCourtCaseHandler(service, nil, archive, logger).
		Register(e.Group(""), middleware.ReadRateLimiter.Middleware(), middleware.IngestRateLimiter.Middleware())

	e.GET("/health", handlers.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/audit-logs", handlers.GetAuditLogsHandler)
	e.GET("/case/:caseId/history", handlers.GetCaseHistoryHandler)

	// Start server
	go func() {
		logger.Infow("Server starting", "port", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Failed to start server", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Server shutdown failed", "error", err)
	}
	<-scheduler.Stop().Done()
	telemetry.Wait()
	// audit rows are written in the background and need the database still open
	auditor.Wait()
	if conn != nil {
		if err := conn.Drain(); err != nil {
			logger.Warnw("NATS drain failed", "error", err)
		}
	}
}
