package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jgirmay/livetrack/pkg/config"
	"github.com/jgirmay/livetrack/pkg/eventstore"
	"github.com/jgirmay/livetrack/pkg/geo"
	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/http/handlers"
	"github.com/jgirmay/livetrack/pkg/location"
	"github.com/jgirmay/livetrack/pkg/logging"
	"github.com/jgirmay/livetrack/pkg/metrics"
	"github.com/jgirmay/livetrack/pkg/monitoring"
	"github.com/jgirmay/livetrack/pkg/movement"
	"github.com/jgirmay/livetrack/pkg/publish"
	"github.com/jgirmay/livetrack/pkg/repository"
	"github.com/jgirmay/livetrack/pkg/session"
	"github.com/jgirmay/livetrack/pkg/zones"
)

var version = "dev"

func main() {
	configPath := flag.StringP("config", "c", "livetrack.yaml", "path to the YAML config file")
	logLevel := flag.String("log-level", "", "override logging.level")
	retention := flag.Duration("history-retention", 30*24*time.Hour, "prune tracking history older than this (0 keeps everything)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("livemonitor", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "livemonitor: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "livemonitor: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := logging.New(logging.Level(cfg.Logging.Level), logging.Format(cfg.Logging.Format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "livemonitor: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *retention, logger); err != nil {
		logger.Error("livemonitor exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, retention time.Duration, logger *zap.Logger) error {
	logger.Info("Starting livemonitor", zap.String("version", version), zap.Stringer("config", cfg))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	store := eventstore.New(eventstore.WithLogger(logger))

	var (
		repos   *repository.Registry
		sqlDB   *sql.DB
		history movement.History = movement.NewMemoryHistory(0)
	)
	if cfg.Database.URL != "" {
		db, err := repository.Open(cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		repos = repository.NewRegistry(db)
		defer repos.Close()
		if err := repos.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		if sqlDB, err = repos.GetDB().DB(); err != nil {
			return fmt.Errorf("failed to access database handle: %w", err)
		}
		history = repos.Tracking
		logger.Info("Database connection established")
	}

	anchors := movement.NewStaticAnchors(nil, nil)
	zoneRegistry, err := newZoneRegistry(cfg, repos, anchors, collector, logger)
	if err != nil {
		return err
	}

	pipeline := session.NewLocationPipeline(
		zoneRegistry,
		geofence.NewEvaluator(),
		movement.NewClassifier(cfg.Movement, anchors),
		session.WithHistory(history),
		session.WithPipelineMetrics(collector),
		session.WithPipelineLogger(logger),
	)

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(collector),
		session.WithPipeline(pipeline),
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		publisher := publish.NewRedisPublisher(redisClient, cfg.Redis.Channel, logger)
		// Runs before the client close and after manager.Stop, so the final
		// state change is published.
		defer publisher.Close()
		opts = append(opts, session.WithObserver(publisher))
	}

	manager, err := session.NewManager(cfg.Stream, store, opts...)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	go zoneRegistry.Run(ctx)
	if repos != nil && retention > 0 {
		go pruneHistory(ctx, repos.Tracking, retention, logger)
	}

	if err := manager.Start(ctx); err != nil {
		logger.Warn("Initial connection failed, retrying", zap.Error(err))
	}
	defer manager.Stop()

	if cfg.Location.Enabled {
		provider := location.StaticProvider{Point: geo.Point{Lat: cfg.Location.Latitude, Lon: cfg.Location.Longitude}}
		sub := location.Watch(ctx, provider, cfg.Location.Interval, manager, logger)
		defer sub.Stop()
	}

	healthOpts := []monitoring.Option{monitoring.WithZones(zoneRegistry)}
	if sqlDB != nil {
		healthOpts = append(healthOpts, monitoring.WithDatabase(sqlDB))
	}
	if redisClient != nil {
		healthOpts = append(healthOpts, monitoring.WithRedis(redisClient))
	}
	health := monitoring.NewHealthChecker(manager, version, healthOpts...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(handlers.RequestLogger(logger.Named("http")))
	router.Use(middleware.Recoverer)

	handlers.RegisterMonitorRoutes(
		router,
		handlers.NewMonitorHandlers(store, manager, pipeline.Evaluator(), history, health, logger),
		reg,
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status API listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("status API failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Status API shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
	return nil
}

func newZoneRegistry(cfg *config.Config, repos *repository.Registry, anchors *movement.StaticAnchors, collector *metrics.Collector, logger *zap.Logger) (*zones.Registry, error) {
	opts := []zones.Option{
		zones.WithInterval(cfg.Zones.RefreshInterval),
		zones.WithLogger(logger),
		zones.WithMetrics(collector),
	}

	var repoSource *zones.RepositorySource
	if repos != nil {
		repoSource = zones.NewRepositorySource(repos)
		opts = append(opts, zones.WithAnchors(repoSource, anchors))
	}

	switch cfg.Zones.Source {
	case "database":
		if repoSource == nil {
			return nil, fmt.Errorf("%w: zones.source is database but database.url is empty", config.ErrInvalidConfig)
		}
		return zones.NewRegistry(repoSource, opts...), nil
	case "http":
		return zones.NewRegistry(zones.NewHTTPSource(cfg.Zones.URL, 10*time.Second), opts...), nil
	default:
		return zones.NewRegistry(zones.StaticSource(nil), opts...), nil
	}
}

func pruneHistory(ctx context.Context, tracking repository.TrackingRepository, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := tracking.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("Tracking history prune failed", zap.Error(err))
		case n > 0:
			logger.Info("Pruned tracking history", zap.Int64("rows", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
