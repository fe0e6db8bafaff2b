package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	botStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botvisor",
			Subsystem: "bot",
			Name:      "starts_total",
			Help:      "Number of successful bot launches.",
		}, []string{"name"},
	)
	botStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botvisor",
			Subsystem: "bot",
			Name:      "start_failures_total",
			Help:      "Number of launch attempts the OS rejected.",
		}, []string{"name"},
	)
	botStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botvisor",
			Subsystem: "bot",
			Name:      "stops_total",
			Help:      "Number of stop requests that signalled a live bot.",
		}, []string{"name"},
	)
	botRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botvisor",
			Subsystem: "bot",
			Name:      "restarts_total",
			Help:      "Number of restart requests.",
		}, []string{"name"},
	)
	botExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botvisor",
			Subsystem: "bot",
			Name:      "exits_total",
			Help:      "Number of observed bot exits, by whether a stop was requested.",
		}, []string{"name", "requested"},
	)
	restartDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botvisor",
			Subsystem: "bot",
			Name:      "restart_duration_seconds",
			Help:      "Time from stop request to the relaunch attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	botOnline = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botvisor",
			Subsystem: "bot",
			Name:      "online",
			Help:      "1 while the supervised bot holds a live process handle.",
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{botStarts, botStartFailures, botStops, botRestarts, botExits, restartDuration, botOnline}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has succeeded.

func IncStart(name string) {
	if regOK.Load() {
		botStarts.WithLabelValues(name).Inc()
		botOnline.WithLabelValues(name).Set(1)
	}
}

func IncStartFailure(name string) {
	if regOK.Load() {
		botStartFailures.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		botStops.WithLabelValues(name).Inc()
		botOnline.WithLabelValues(name).Set(0)
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		botRestarts.WithLabelValues(name).Inc()
	}
}

func IncExit(name string, requested bool) {
	if regOK.Load() {
		r := "false"
		if requested {
			r = "true"
		}
		botExits.WithLabelValues(name, r).Inc()
	}
}

func ObserveRestartDuration(name string, seconds float64) {
	if regOK.Load() {
		restartDuration.WithLabelValues(name).Observe(seconds)
	}
}

func SetOnline(name string, online bool) {
	if regOK.Load() {
		var v float64
		if online {
			v = 1
		}
		botOnline.WithLabelValues(name).Set(v)
	}
}
