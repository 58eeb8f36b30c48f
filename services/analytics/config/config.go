// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the analytics service configuration from the
// environment.
//
// # Description
//
// Every setting has a PULSE_* variable and a default that works for a
// single-node deployment: SQLite in the working directory, UTC bucketing,
// no InfluxDB mirror, traces off and metrics on /metrics. OpenTelemetry
// exporter settings reuse the standard OTEL_* names.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AleutianAI/AleutianPulse/pkg/logging"
	"github.com/AleutianAI/AleutianPulse/services/analytics/clock"
	"github.com/AleutianAI/AleutianPulse/services/analytics/mirror"
	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
	"github.com/AleutianAI/AleutianPulse/services/analytics/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the analytics service configuration.
type Config struct {
	Port        int    `env:"PULSE_PORT" envDefault:"3000"`
	Environment string `env:"PULSE_ENV" envDefault:"development"`
	Version     string `env:"PULSE_VERSION" envDefault:"dev"`

	DBDialect  string        `env:"PULSE_DB_DIALECT" envDefault:"sqlite"`
	DBDSN      string        `env:"PULSE_DB_DSN" envDefault:"pulse.db"`
	DBTimeout  time.Duration `env:"PULSE_DB_TIMEOUT" envDefault:"2s"`
	DBMaxConns int           `env:"PULSE_DB_MAX_CONNS" envDefault:"20"`

	// BucketZone is the IANA zone used for day and month buckets.
	BucketZone  string `env:"PULSE_BUCKET_ZONE" envDefault:"UTC"`
	CatalogFile string `env:"PULSE_CATALOG_FILE"`

	IngestRate  float64  `env:"PULSE_INGEST_RATE" envDefault:"50"`
	IngestBurst int      `env:"PULSE_INGEST_BURST" envDefault:"100"`
	CORSOrigins []string `env:"PULSE_CORS_ORIGINS" envSeparator:","`

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// honoured. Empty means the peer address is the client address.
	TrustedProxies []string `env:"PULSE_TRUSTED_PROXIES" envSeparator:","`

	InfluxURL       string `env:"PULSE_INFLUX_URL"`
	InfluxToken     string `env:"PULSE_INFLUX_TOKEN"`
	InfluxOrg       string `env:"PULSE_INFLUX_ORG" envDefault:"aleutian"`
	InfluxBucket    string `env:"PULSE_INFLUX_BUCKET" envDefault:"pulse"`
	InfluxQueueSize int    `env:"PULSE_INFLUX_QUEUE" envDefault:"1024"`

	TraceExporter  string  `env:"OTEL_TRACES_EXPORTER" envDefault:"none"`
	MetricExporter string  `env:"OTEL_METRICS_EXPORTER" envDefault:"prometheus"`
	OTLPEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTLPInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio    float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1"`

	ShutdownTimeout time.Duration `env:"PULSE_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"PULSE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PULSE_LOG_FORMAT" envDefault:"json"`
	LogDir    string `env:"PULSE_LOG_DIR"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and that the bucket zone exists.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PULSE_PORT %d out of range", c.Port))
	}
	switch store.Dialect(c.DBDialect) {
	case store.DialectSQLite, store.DialectPostgres:
	default:
		errs = append(errs, fmt.Errorf("PULSE_DB_DIALECT %q is not sqlite or postgres", c.DBDialect))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("PULSE_DB_DSN is empty"))
	}
	if c.DBTimeout <= 0 {
		errs = append(errs, errors.New("PULSE_DB_TIMEOUT must be positive"))
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, errors.New("PULSE_DB_MAX_CONNS must be positive"))
	}
	if _, err := clock.NewCalendar(c.BucketZone); err != nil {
		errs = append(errs, fmt.Errorf("PULSE_BUCKET_ZONE: %w", err))
	}
	if c.IngestRate <= 0 || c.IngestBurst <= 0 {
		errs = append(errs, errors.New("PULSE_INGEST_RATE and PULSE_INGEST_BURST must be positive"))
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errs = append(errs, fmt.Errorf("PULSE_TRUSTED_PROXIES: %q is not an IP or CIDR", p))
			}
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("PULSE_LOG_LEVEL: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("PULSE_LOG_FORMAT %q is not json or text", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Calendar returns the bucketing calendar. Validate has already checked the
// zone.
func (c Config) Calendar() clock.Calendar {
	cal, err := clock.NewCalendar(c.BucketZone)
	if err != nil {
		return clock.UTC
	}
	return cal
}

// Catalog loads the portfolio catalog, defaulting to the built-in one.
func (c Config) Catalog() (portfolio.Catalog, error) {
	return portfolio.LoadCatalog(c.CatalogFile)
}

// Logging returns the process logger settings. Output goes to stdout.
func (c Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.LogLevel)
	return logging.Config{
		Level:   level,
		JSON:    c.LogFormat == "json",
		Output:  os.Stdout,
		LogDir:  c.LogDir,
		Service: "pulse-analytics",
	}
}

// Store returns the store settings.
func (c Config) Store(wc *clock.WriteClock) store.Config {
	return store.Config{
		Dialect:      store.Dialect(c.DBDialect),
		DSN:          c.DBDSN,
		Timeout:      c.DBTimeout,
		MaxOpenConns: c.DBMaxConns,
		Clock:        wc,
	}
}

// MirrorEnabled reports whether an InfluxDB URL is configured.
func (c Config) MirrorEnabled() bool {
	return c.InfluxURL != ""
}

// Mirror returns the InfluxDB mirror settings.
func (c Config) Mirror() mirror.Config {
	return mirror.Config{
		URL:       c.InfluxURL,
		Token:     c.InfluxToken,
		Org:       c.InfluxOrg,
		Bucket:    c.InfluxBucket,
		QueueSize: c.InfluxQueueSize,
	}
}

// Telemetry returns the OpenTelemetry settings.
func (c Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		ServiceName:    "pulse-analytics",
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		TraceExporter:  c.TraceExporter,
		MetricExporter: c.MetricExporter,
		OTLPEndpoint:   c.OTLPEndpoint,
		OTLPInsecure:   c.OTLPInsecure,
		SampleRatio:    c.SampleRatio,
	}
}
