// Package metrics counts what the engine did during an operation. The
// numbers are written to a node-exporter textfile after each run and served
// by the bridge under /metrics.
package metrics

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kitman"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics holds the collectors of one engine.
type Metrics struct {
	registry *prometheus.Registry

	operations   *prometheus.CounterVec
	toolSteps    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	toolchain    *prometheus.CounterVec
	lastRun      *prometheus.GaugeVec
}

// New creates collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by kind and outcome",
		}, []string{"operation", "result"}),
		toolSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_steps_total",
			Help:      "Tool install and uninstall steps by tool kind and outcome",
		}, []string{"action", "kind", "result"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of engine steps",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"step"}),
		toolchain: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toolchain_steps_total",
			Help:      "Toolchain steps by action and outcome",
		}, []string{"action", "result"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time an operation last finished",
		}, []string{"operation"}),
	}
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Operation counts a finished operation.
func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result(err)).Inc()
	m.lastRun.WithLabelValues(op).SetToCurrentTime()
}

// ToolStep counts one tool install or uninstall.
func (m *Metrics) ToolStep(action, kind, res string) {
	if m == nil {
		return
	}
	m.toolSteps.WithLabelValues(action, kind, res).Inc()
}

// ToolchainStep counts one toolchain action.
func (m *Metrics) ToolchainStep(action string, err error) {
	if m == nil {
		return
	}
	m.toolchain.WithLabelValues(action, result(err)).Inc()
}

// Observe records how long step took since start.
func (m *Metrics) Observe(step string, start time.Time) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the metrics in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics to path for the node exporter's
// textfile collector. An empty path does nothing.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(path))
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "write metrics to %s", path)
	}
	return nil
}
