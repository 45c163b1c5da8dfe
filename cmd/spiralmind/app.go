package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/config"
	"github.com/fyrsmithlabs/spiralmind/internal/gateway"
	"github.com/fyrsmithlabs/spiralmind/internal/knowledge"
	"github.com/fyrsmithlabs/spiralmind/internal/logging"
	"github.com/fyrsmithlabs/spiralmind/internal/metrics"
	"github.com/fyrsmithlabs/spiralmind/internal/reasoning"
	"github.com/fyrsmithlabs/spiralmind/internal/router"
	"github.com/fyrsmithlabs/spiralmind/internal/session"
	"github.com/fyrsmithlabs/spiralmind/internal/telemetry"
)

// app holds the wired services shared by the HTTP and MCP front ends.
type app struct {
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	store     *knowledge.Store
	router    *router.Router
}

// newTelemetry is replaced in tests.
var newTelemetry = telemetry.New

// newApp wires logging, telemetry, metrics, the store and the router.
// forceStderr keeps stdout free for the MCP protocol.
func newApp(ctx context.Context, cfg *config.Config, forceStderr bool) (*app, error) {
	output := cfg.Logging.Output
	if forceStderr {
		output = logging.OutputStderr
	}
	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format, output)
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := logger.Underlying()

	tel, err := newTelemetry(ctx, telemetry.FromSettings(cfg.Telemetry, version), zl.Named("telemetry"))
	if err != nil {
		return nil, err
	}
	// fail releases telemetry when a later step cannot be built.
	fail := func(err error) (*app, error) {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fail(fmt.Errorf("failed to register metrics: %w", err))
	}

	persister, err := newPersister(cfg.Store)
	if err != nil {
		return fail(err)
	}

	seed := cfg.Reasoning.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	engine := reasoning.NewEngine(rand.New(rand.NewSource(rng.Int63())),
		reasoning.WithMaxDepth(cfg.Reasoning.MaxDepth))

	store, err := knowledge.Open(ctx, knowledge.Options{
		Persister:       persister,
		Engine:          engine,
		Rand:            rng,
		MaxExplanations: cfg.Store.MaxExplanations,
		Hops:            cfg.Reasoning.Hops,
		Logger:          zl.Named("knowledge"),
		Metrics:         m,
	})
	if err != nil {
		_ = persister.Close()
		return fail(fmt.Errorf("failed to open knowledge store: %w", err))
	}

	gw, err := gateway.New(gateway.Config{
		Providers:     cfg.Gateway.EnabledProviders(),
		Timeout:       cfg.Gateway.Timeout.Duration(),
		UserAgent:     cfg.Gateway.UserAgent,
		WikipediaURL:  cfg.Gateway.WikipediaURL,
		DuckDuckGoURL: cfg.Gateway.DuckDuckGoURL,
		RateLimit:     cfg.Gateway.RateLimit,
		Burst:         cfg.Gateway.Burst,
	}, zl.Named("gateway"), m)
	if err != nil {
		_ = store.Close(ctx)
		return fail(fmt.Errorf("failed to build gateway: %w", err))
	}

	rt, err := router.New(router.Options{
		Store:    store,
		Gateway:  gw,
		Sessions: session.NewManager(cfg.Session.Capacity, cfg.Session.MaxSessions),
		Logger:   logger.Named("router"),
		Metrics:  m,
	})
	if err != nil {
		_ = store.Close(ctx)
		return fail(err)
	}

	zl.Info("spiralmind initialized",
		zap.String("version", version),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Int("concepts", store.Len()),
		zap.Strings("providers", cfg.Gateway.EnabledProviders()),
		zap.Bool("telemetry", tel.IsEnabled()))

	return &app{
		logger:    logger,
		telemetry: tel,
		registry:  registry,
		metrics:   m,
		store:     store,
		router:    rt,
	}, nil
}

func newPersister(cfg config.StoreConfig) (knowledge.Persister, error) {
	path, err := config.ExpandPath(cfg.Path)
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := knowledge.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	default:
		return knowledge.NewFileStore(path), nil
	}
}

// Close saves the store one last time and flushes telemetry and logs.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.store.Close(ctx); err != nil {
		a.logger.Error(ctx, "final knowledge save failed", zap.Error(err))
		errs = append(errs, err)
	} else {
		a.logger.Info(ctx, "knowledge saved", zap.Int("concepts", a.store.Len()))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
