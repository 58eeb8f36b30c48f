// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics assembles the usage analytics service.
//
// # Description
//
// New opens the event store, reconciles the canonical portfolio set,
// builds the aggregation engine and the ingestion service, and mounts the
// HTTP API on a Gin router:
//
//	config.Config
//	    │
//	    ├─► telemetry.Init ─► global tracer/meter providers
//	    ├─► store.Open ─► migrations
//	    ├─► portfolio.Reconcile ─► Registry (10 portfolios, id order)
//	    ├─► aggregate.New
//	    ├─► mirror (InfluxDB, optional)
//	    ├─► ingest.New
//	    └─► routes.SetupRoutes
//
// Run serves until its context is cancelled, then drains in-flight
// requests and releases everything New acquired.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianPulse/services/analytics/aggregate"
	"github.com/AleutianAI/AleutianPulse/services/analytics/clock"
	"github.com/AleutianAI/AleutianPulse/services/analytics/config"
	"github.com/AleutianAI/AleutianPulse/services/analytics/ingest"
	"github.com/AleutianAI/AleutianPulse/services/analytics/middleware"
	"github.com/AleutianAI/AleutianPulse/services/analytics/mirror"
	"github.com/AleutianAI/AleutianPulse/services/analytics/observability"
	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
	"github.com/AleutianAI/AleutianPulse/services/analytics/routes"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
	"github.com/AleutianAI/AleutianPulse/services/analytics/telemetry"
)

// Service is the running analytics service.
//
// # Thread Safety
//
// Run must be called at most once. Router is safe to use concurrently.
type Service interface {
	// Run serves HTTP on the configured port until ctx is cancelled.
	//
	// # Outputs
	//
	//   - error: nil after a clean shutdown, otherwise the listen or
	//     shutdown failure.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine for tests.
	Router() *gin.Engine

	// Registry returns the reconciled portfolio registry.
	Registry() *portfolio.Registry
}

// service implements Service.
type service struct {
	config    config.Config
	started   time.Time
	router    *gin.Engine
	store     *store.Store
	registry  *portfolio.Registry
	engine    *aggregate.Engine
	sink      mirror.Sink
	metrics   *observability.Metrics
	telemetry func(context.Context) error
}

// New builds the service from cfg.
//
// # Inputs
//
//   - ctx: Startup context. Bounds store connection and reconciliation.
//   - cfg: Validated configuration.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Telemetry, store, catalog or reconciliation failure. Anything
//     already acquired is released.
func New(ctx context.Context, cfg config.Config) (Service, error) {
	s := &service{
		config:  cfg,
		started: time.Now(),
		metrics: observability.Default(),
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetry = shutdown

	if err := s.initStore(ctx); err != nil {
		s.cleanup()
		return nil, err
	}

	if err := s.initMirror(); err != nil {
		slog.Warn("InfluxDB mirror disabled", "error", err)
		s.sink = mirror.NopSink{}
	}

	if err := s.initRouter(); err != nil {
		s.cleanup()
		return nil, err
	}
	return s, nil
}

func (s *service) initStore(ctx context.Context) error {
	st, err := store.Open(ctx, s.config.Store(clock.NewWriteClock(clock.DefaultWriteClockConfig())))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.store = st

	cat, err := s.config.Catalog()
	if err != nil {
		return err
	}
	s.registry, err = portfolio.Reconcile(ctx, st, cat)
	if err != nil {
		return fmt.Errorf("failed to reconcile portfolios: %w", err)
	}

	s.engine, err = aggregate.New(aggregate.Config{
		Source:   st,
		Registry: s.registry,
		Calendar: s.config.Calendar(),
		Observer: s.metrics,
	})
	if err != nil {
		return err
	}

	slog.Info("Store ready",
		"dialect", st.Dialect(),
		"portfolios", s.registry.Len(),
		"bucket_zone", s.config.Calendar().Zone(),
	)
	return nil
}

func (s *service) initMirror() error {
	if !s.config.MirrorEnabled() {
		s.sink = mirror.NopSink{}
		return nil
	}
	sink, err := mirror.NewInfluxSink(s.config.Mirror(), s.metrics)
	if err != nil {
		return err
	}
	s.sink = sink
	slog.Info("InfluxDB mirror enabled", "url", s.config.InfluxURL, "bucket", s.config.InfluxBucket)
	return nil
}

func (s *service) initRouter() error {
	s.router = gin.New()
	if err := s.router.SetTrustedProxies(s.config.TrustedProxies); err != nil {
		return fmt.Errorf("failed to set trusted proxies: %w", err)
	}
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware("pulse-analytics"),
		middleware.RequestLogger(),
		middleware.CORS(s.config.CORSOrigins),
	)

	routes.SetupRoutes(s.router, routes.Deps{
		Engine:   s.engine,
		Ingestor: ingest.New(s.registry, s.store, s.sink, s.metrics),
		Backend:  s.store,
		Metrics:  telemetry.MetricsHandler(),
		RateLimit: middleware.RateLimitConfig{
			Rate:  s.config.IngestRate,
			Burst: s.config.IngestBurst,
			OnLimited: func() {
				s.metrics.RecordIngestError(observability.ErrorCodeRateLimited)
			},
		},
		Started: s.started,
		Version: s.config.Version,
	})
	return nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		s.cleanup()
		return fmt.Errorf("listen %s: %w", s.config.Addr(), err)
	}
	return s.serve(ctx, ln)
}

func (s *service) serve(ctx context.Context, ln net.Listener) error {
	defer s.cleanup()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting analytics server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down analytics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Registry implements Service.
func (s *service) Registry() *portfolio.Registry {
	return s.registry
}

// cleanup releases everything New acquired, in reverse order.
func (s *service) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.sink != nil {
		if err := s.sink.Close(ctx); err != nil {
			slog.Warn("mirror close error", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("store close error", "error", err)
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}
}

var _ Service = (*service)(nil)
