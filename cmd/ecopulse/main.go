package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"

	httpapi "github.com/ecopulse/ecopulse/internal/api/http"
	"github.com/ecopulse/ecopulse/internal/app"
	"github.com/ecopulse/ecopulse/internal/audit"
	"github.com/ecopulse/ecopulse/internal/config"
	"github.com/ecopulse/ecopulse/internal/scheduler"
	"github.com/ecopulse/ecopulse/internal/source"
	"github.com/ecopulse/ecopulse/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(cfg.LogLevel),
		TimeFormat: time.TimeOnly,
	})))

	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Init(cfg.Locations, cfg.Regions, cfg.Indicators); err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// Optional audit sink, selected once at startup.
	var sink audit.Sink = audit.Noop{}
	if len(cfg.AuditBrokers) > 0 {
		kafkaSink, available := audit.NewKafkaSink(cfg.AuditBrokers, cfg.AuditTopic, slog.Default())
		if available {
			sink = kafkaSink
			slog.Info("audit sink enabled", "brokers", cfg.AuditBrokers, "topic", cfg.AuditTopic)
		} else {
			kafkaSink.Close()
			slog.Warn("audit brokers unreachable; audit disabled")
		}
	}
	defer sink.Close()

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	envSource := source.NewEnvironmental(
		source.NewClient(httpClient, "open-meteo", cfg.UserAgent, cfg.MaxRetries, cfg.RetryBackoff),
		cfg.Locations,
	)
	macroSource := source.NewMacro(
		source.NewClient(httpClient, "worldbank", cfg.UserAgent, cfg.MaxRetries, cfg.RetryBackoff),
		cfg.Indicators, cfg.Regions,
	)
	wikiSource := source.NewEncyclopedia(
		source.NewClient(httpClient, "wikipedia", cfg.UserAgent, cfg.MaxRetries, cfg.RetryBackoff),
		cfg.Locations,
	)

	service := app.NewService(st, envSource, macroSource, wikiSource, sink, app.Intervals{
		Environment: cfg.EnvInterval,
		Macro:       cfg.MacroInterval,
		Wikipedia:   cfg.WikiInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Populate the store before the schedule takes over; each source first
	// becomes due one interval after start.
	slog.Info("running initial fetch")
	if err := service.FetchAll(ctx); err != nil {
		slog.Error("initial fetch failed", "error", err)
		// Non-fatal: serve whatever the store already holds.
	}

	sched := scheduler.New(service.Jobs(), cfg.SchedulerTick, clockwork.NewRealClock())
	sched.Notify = service.Notify
	sched.Start(ctx)
	defer sched.Stop()

	fa := fiber.New(fiber.Config{
		AppName:               "ecopulse",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	fa.Use(logger.New())
	fa.Use(recover.New())

	fa.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "ecopulse",
		})
	})

	httpapi.RegisterRoutes(fa, service, sched)

	go func() {
		if err := fa.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "error", err)
		}
	}()
	slog.Info("server starting", "port", cfg.Port)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fa.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	slog.Info("shutdown complete")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
