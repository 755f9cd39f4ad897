package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-monitor/internal/api/http"
	"github.com/i474232898/weather-monitor/internal/config"
	"github.com/i474232898/weather-monitor/internal/extract"
	"github.com/i474232898/weather-monitor/internal/history"
	"github.com/i474232898/weather-monitor/internal/logging"
	"github.com/i474232898/weather-monitor/internal/metrics"
	"github.com/i474232898/weather-monitor/internal/monitor"
	"github.com/i474232898/weather-monitor/internal/store"
	"github.com/i474232898/weather-monitor/internal/weather"
)

func main() {
	root := &cobra.Command{
		Use:           "weather-monitor",
		Short:         "Aggregate weather from several unreliable sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the monitor loop and the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single collection round and print the result as JSON",
			RunE:  runOnce,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds everything the commands share.
type app struct {
	cfg      *config.AppConfig
	logger   *logrus.Logger
	registry *prometheus.Registry
	monitor  *monitor.Monitor
}

func newApp() (*app, error) {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	providers, err := weather.NewRegistry(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("invalid providers: %w", err)
	}

	cache, err := store.NewMemoryStore(cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	// Page extraction with resilience (rate limit + backoff + circuit breaker).
	extractor := extract.NewHTTPExtractor(extract.Config{
		Client:    &http.Client{Timeout: cfg.HTTPTimeout},
		RateLimit: cfg.ExtractRateLimit,
		Burst:     cfg.ExtractRateBurst,
	})

	collector := weather.NewCollector(providers, extractor, cache, weather.CollectorConfig{
		FetchTimeout: cfg.FetchTimeout,
		CacheTTL:     cfg.CacheTTL,
		Recorder:     m,
		Logger:       log,
	})

	mon, err := monitor.New(monitor.Config{
		Registry:   providers,
		Collector:  collector,
		Aggregator: weather.NewAggregator(cache, weather.TopTwoBlend{}),
		Cache:      cache,
		Interval:   cfg.FetchInterval,
		Recorder:   m,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"providers": len(cfg.Providers),
		"interval":  cfg.FetchInterval.String(),
		"cache_ttl": cfg.CacheTTL.String(),
	}).Info("weather monitor configured")

	return &app{cfg: cfg, logger: log, registry: reg, monitor: mon}, nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(a.monitor.RunRound(ctx))
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	log := a.logger

	if a.cfg.DatabaseDSN != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		repo, err := history.Open(ctx, a.cfg.DatabaseDSN, log)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer repo.Close()

		unsubscribe := a.monitor.Subscribe(repo.Subscriber())
		defer unsubscribe()
		log.Info("history sink enabled")
	}

	// Monitor loop that periodically collects and publishes readings.
	if err := a.monitor.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	defer a.monitor.Stop()

	// Basic app configuration
	server := fiber.New(fiber.Config{
		AppName:               "weather-monitor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          35 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
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

	// Global middleware
	server.Use(logger.New())
	server.Use(recover.New())

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-monitor",
			"running": a.monitor.Running(),
		})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(server, a.monitor)

	go func() {
		if err := server.Listen(":" + a.cfg.Port); err != nil {
			log.WithError(err).Error("fiber server stopped")
		}
	}()
	log.WithField("port", a.cfg.Port).Info("HTTP server listening")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	return nil
}
