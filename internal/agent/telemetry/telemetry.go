package telemetry

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/internal/agent/core"
)

var (
	stagesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquest_stages_started_total",
		Help: "Pipeline stages started, by stage.",
	}, []string{"stage"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inquest_stage_duration_seconds",
		Help:    "Wall time per completed pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquest_run_failures_total",
		Help: "Hard run failures, by stage that raised them.",
	}, []string{"stage"})
)

// Telemetry logs pipeline lifecycle events and feeds the Prometheus
// collectors behind /metrics. It implements core.Observer and never touches
// run state or control flow.
type Telemetry struct {
	logger *log.Logger
}

// NewTelemetry builds the observer. When cfg.Enabled is false events are
// still counted but nothing is logged.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	out := io.Writer(os.Stdout)
	if !cfg.Enabled {
		out = io.Discard
	} else if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	return &Telemetry{logger: log.New(out, "[PIPELINE] ", log.LstdFlags)}
}

func (t *Telemetry) StageStart(stage string, state core.RunState) {
	stagesStarted.WithLabelValues(stage).Inc()
	t.logger.Printf("stage %s started (query: %.60q)", stage, state.Query)
}

func (t *Telemetry) StageEnd(stage string, _ core.RunState, took time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(took.Seconds())
	t.logger.Printf("stage %s completed in %s", stage, took.Round(time.Millisecond))
}

func (t *Telemetry) RunFailure(stage string, err error) {
	runFailures.WithLabelValues(stage).Inc()
	t.logger.Printf("run failed at stage %s: %v", stage, err)
}
