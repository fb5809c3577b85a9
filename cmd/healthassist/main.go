package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthassist/internal/analysis"
	"healthassist/internal/api"
	"healthassist/internal/config"
	"healthassist/internal/hospitals"
	"healthassist/internal/keypool"
	"healthassist/internal/logger"
	"healthassist/internal/models"
	"healthassist/internal/observability"
	"healthassist/internal/ratelimit"
	"healthassist/internal/version"

	"github.com/redis/go-redis/v9"
)

var (
	configFile   = flag.String("config", "", "Path to configuration file")
	envFile      = flag.String("env-file", "", "Path to a dotenv file (default: .env if present)")
	writeExample = flag.String("write-example-config", "", "Write the default configuration to this path and exit")
	printVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *printVersion {
		fmt.Println(ver.String())
		return
	}
	if *writeExample != "" {
		if err := config.SaveExample(*writeExample); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(*configFile, envFiles...)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Model credential pool
	keys := keypool.Discover(cfg.Gemini.APIKeys, cfg.Gemini.KeyEnvPrefix, cfg.Gemini.MaxKeys, os.LookupEnv)
	pool := keypool.New(keys, keypool.Options{
		CapacityPerWindow: cfg.Gemini.CapacityPerWindow,
		Window:            cfg.Gemini.Window,
	})
	if pool.Len() == 0 {
		slog.Warn("No Gemini API keys found, analysis will use fallback rules",
			"env_prefix", cfg.Gemini.KeyEnvPrefix)
	} else {
		slog.Info("Gemini key pool ready",
			"keys", pool.Len(),
			"capacity_per_window", pool.CapacityPerWindow(),
			"window", pool.Window())
	}

	scheduler := keypool.NewResetScheduler(pool, cfg.Gemini.ResetSchedule)
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("Failed to start key reset scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()
	if scheduler.IsRunning() {
		slog.Info("Key usage resets scheduled",
			"schedule", cfg.Gemini.ResetSchedule,
			"next_reset", scheduler.NextRun())
	}

	analyzer, err := initializeAnalyzer(cfg, pool, ver)
	if err != nil {
		slog.Error("Failed to initialize analysis service", "error", err)
		os.Exit(1)
	}

	locations := initializeLocations(cfg)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	handlerOpts := []api.HandlerOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	if cfg.Security.RateLimit.Enabled {
		limitOpts, store, closeLimiters := initializeRateLimits(ctx, cfg.Security.RateLimit)
		defer closeLimiters()
		routeOpts = append(routeOpts, limitOpts...)
		if store != nil {
			handlerOpts = append(handlerOpts, api.WithRateLimitStore(store))
		}
	}

	handlers := api.NewHandlers(analyzer, locations, pool, cfg, handlerOpts...)

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "version", ver.Version)

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeAnalyzer builds the Gemini-backed analysis service. With metrics
// enabled the pool and the service are wrapped with instrumentation.
func initializeAnalyzer(cfg *models.Config, pool *keypool.Limiter, ver version.Info) (api.Analyzer, error) {
	var selector analysis.KeySelector = pool
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedKeySelector(pool)
		if err != nil {
			return nil, fmt.Errorf("instrument key pool: %w", err)
		}
		if err := observability.RegisterKeyPoolGauges(pool); err != nil {
			return nil, fmt.Errorf("register key pool gauges: %w", err)
		}
		selector = instrumented
	}

	generator := analysis.NewGeminiGenerator(cfg.Gemini.Model, analysis.WithUserAgent(ver.UserAgent()))
	slog.Info("Analysis generator ready", "generator", generator.Name(), "timeout", cfg.Gemini.RequestTimeout)

	service := analysis.NewService(selector, generator, analysis.Options{
		Timeout: cfg.Gemini.RequestTimeout,
	})
	if !cfg.Metrics.Enabled {
		return service, nil
	}

	instrumented, err := observability.NewInstrumentedAnalyzer(service)
	if err != nil {
		return nil, fmt.Errorf("instrument analysis service: %w", err)
	}
	return instrumented, nil
}

// initializeLocations builds the hospital search service. A missing maps key
// is not fatal: the location routes report it per request.
func initializeLocations(cfg *models.Config) *hospitals.Service {
	opts := hospitals.Options{
		MaxResults:       cfg.Maps.MaxResults,
		GeocodeCacheSize: cfg.Maps.GeocodeCacheSize,
		GeocodeCacheTTL:  cfg.Maps.GeocodeCacheTTL,
		RequestTimeout:   cfg.Maps.RequestTimeout,
	}

	client, err := hospitals.NewMapsClient(cfg.Maps.APIKey)
	if err != nil {
		if errors.Is(err, hospitals.ErrMapsNotConfigured) {
			slog.Warn("Google Maps API key not found, hospital search and address lookup are disabled")
		} else {
			slog.Error("Failed to create maps client, hospital search is disabled", "error", err)
		}
		return hospitals.NewService(nil, opts)
	}
	return hospitals.NewService(client, opts)
}

// initializeRateLimits builds the three throttling tiers. They share one
// Redis client when the redis store is selected, and the returned store is
// then non-nil so /health can report it.
func initializeRateLimits(ctx context.Context, cfg models.RateLimitConfig) ([]api.RouteOption, api.StorePinger, func()) {
	var client *redis.Client
	if cfg.Store == models.RateLimitStoreRedis {
		client = ratelimit.NewRedisClient(cfg.Redis)
	}

	general := ratelimit.New(cfg, ratelimit.TierGeneral, cfg.General, client)
	analysisTier := ratelimit.New(cfg, ratelimit.TierAnalysis, cfg.Analysis, client)
	hospitalTier := ratelimit.New(cfg, ratelimit.TierHospital, cfg.Hospital, client)

	store, _ := general.(api.StorePinger)
	if store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			slog.Warn("Redis unreachable, rate limiting will fail open until it recovers",
				"addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
	}

	opts := []api.RouteOption{
		api.WithRateLimiter(ratelimit.Middleware(general, cfg.General.Message)),
		api.WithAnalysisRateLimiter(ratelimit.Middleware(analysisTier, cfg.Analysis.Message)),
		api.WithHospitalRateLimiter(ratelimit.Middleware(hospitalTier, cfg.Hospital.Message)),
	}

	closeAll := func() {
		general.Close()
		analysisTier.Close()
		hospitalTier.Close()
		if client != nil {
			if err := client.Close(); err != nil {
				slog.Error("Failed to close Redis client", "error", err)
			}
		}
	}
	return opts, store, closeAll
}
