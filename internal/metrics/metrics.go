// Package metrics provides Prometheus instrumentation for the executor.
// All metric collectors are registered via Init and exposed through Handler
// for scraping.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReloadsTotal counts reload attempts by trigger and result.
	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_config_reloads_total",
			Help: "Total configuration reload attempts",
		},
		[]string{"trigger", "result"},
	)

	// ReloadDuration observes how long a reload took, read through swap.
	ReloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "executor_config_reload_duration_seconds",
			Help:    "Configuration reload latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// ReloadInProgress is 1 while a reload is running.
	ReloadInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "executor_config_reload_in_progress",
			Help: "Whether a configuration reload is currently running",
		},
	)

	// ReloadsCoalesced counts requests folded into an already pending reload.
	ReloadsCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "executor_config_reload_requests_coalesced_total",
			Help: "Reload requests merged into an already pending reload",
		},
	)

	// ConfigVersion tracks the version of the active configuration.
	ConfigVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "executor_config_version",
			Help: "Version number of the active configuration snapshot",
		},
	)

	// LastReloadSuccess is the unix time of the last successful reload.
	LastReloadSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "executor_config_last_reload_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful configuration reload",
		},
	)

	// RequestsTotal counts HTTP requests on the status server.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_http_requests_total",
			Help: "Total HTTP requests served by the status server",
		},
		[]string{"path", "method", "status"},
	)

	// AdminRejections counts refused admin API calls by reason.
	AdminRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_admin_rejections_total",
			Help: "Total admin API requests rejected",
		},
		[]string{"reason"},
	)
)

var initOnce sync.Once

// Init registers all metric collectors with the default Prometheus registry.
// Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			ReloadsTotal,
			ReloadDuration,
			ReloadInProgress,
			ReloadsCoalesced,
			ConfigVersion,
			LastReloadSuccess,
			RequestsTotal,
			AdminRejections,
		)
	})
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
