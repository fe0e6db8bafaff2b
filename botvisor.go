// Package botvisor supervises a single bot process behind a small HTTP API.
// It re-exports the pieces needed to embed the controller in another program.
package botvisor

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/botvisor/internal/config"
	"github.com/loykin/botvisor/internal/history"
	"github.com/loykin/botvisor/internal/history/factory"
	"github.com/loykin/botvisor/internal/metrics"
	"github.com/loykin/botvisor/internal/process"
	iapi "github.com/loykin/botvisor/internal/server"
	"github.com/loykin/botvisor/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = process.Spec

type Status = supervisor.Status

type Options = supervisor.Options

type Supervisor = supervisor.Supervisor

type Config = cfg.Config

type HistorySink = history.Sink

type HistoryEvent = history.Event

type LaunchError = supervisor.LaunchError

type SignalError = supervisor.SignalError

var (
	ErrAlreadyRunning = supervisor.ErrAlreadyRunning
	ErrNotRunning     = supervisor.ErrNotRunning
	ErrClosed         = supervisor.ErrClosed
)

// New returns a supervisor; call Run in its own goroutine before issuing commands.
func New(opts Options) *Supervisor { return supervisor.New(opts) }

func FormatUptime(d time.Duration) string { return supervisor.FormatUptime(d) }

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewHistorySink opens a sink from a DSN (sqlite, postgres or clickhouse).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewHTTPHandler exposes start/stop/restart/status for s on the given engine ("gin" or "echo").
func NewHTTPHandler(engine string, s *Supervisor, basePath string, log *slog.Logger) (http.Handler, error) {
	return iapi.NewHandler(engine, s, basePath, log)
}

// NewHTTPServer wraps h with the controller's server timeouts.
func NewHTTPServer(addr string, h http.Handler, writeTimeout time.Duration) *http.Server {
	return iapi.NewServer(addr, h, writeTimeout)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// MetricsServer returns a server exposing /metrics from the default registry.
func MetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
