package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	runsCreated           *prometheus.CounterVec
	runsFinished          *prometheus.CounterVec
	runDuration           *prometheus.HistogramVec
	stageExecutions       *prometheus.CounterVec
	stageDuration         *prometheus.HistogramVec
	checkpointResolutions *prometheus.CounterVec
	activeRuns            prometheus.Gauge
	websocketSubscribers  prometheus.Gauge
	componentUp           *prometheus.GaugeVec
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		runsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelgen_runs_created_total",
				Help: "Total number of runs created",
			},
			[]string{"mode"},
		),
		runsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelgen_runs_finished_total",
				Help: "Total number of runs reaching a terminal state",
			},
			[]string{"result"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reelgen_run_duration_seconds",
				Help:    "End-to-end run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"result"},
		),
		stageExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelgen_stage_executions_total",
				Help: "Total number of stage executions",
			},
			[]string{"stage", "status"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reelgen_stage_duration_seconds",
				Help:    "Stage execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		checkpointResolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelgen_checkpoint_resolutions_total",
				Help: "Total number of checkpoint confirm/regenerate resolutions",
			},
			[]string{"checkpoint", "action"},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reelgen_active_runs",
				Help: "Number of runs currently in a non-terminal state",
			},
		),
		websocketSubscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reelgen_websocket_subscribers",
				Help: "Number of connected WebSocket subscribers",
			},
		),
		componentUp: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reelgen_component_up",
				Help: "Whether a service component is up (1) or down (0)",
			},
			[]string{"component"},
		),
	}
}

// RecordRunCreated records a run creation
func (c *Collector) RecordRunCreated(mode string) {
	c.runsCreated.WithLabelValues(mode).Inc()
}

// RecordRunFinished records a run reaching a terminal state
func (c *Collector) RecordRunFinished(result string, duration time.Duration) {
	c.runsFinished.WithLabelValues(result).Inc()
	c.runDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordStageExecution records one stage execution and its duration
func (c *Collector) RecordStageExecution(stage, status string, duration time.Duration) {
	c.stageExecutions.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCheckpointResolution records a checkpoint confirm or regenerate
func (c *Collector) RecordCheckpointResolution(checkpoint, action string) {
	c.checkpointResolutions.WithLabelValues(checkpoint, action).Inc()
}

// SetActiveRuns sets the number of currently active runs
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// SetWebsocketSubscribers sets the number of connected subscribers
func (c *Collector) SetWebsocketSubscribers(count int) {
	c.websocketSubscribers.Set(float64(count))
}

// SetComponentUp sets a component's up/down status
func (c *Collector) SetComponentUp(component string, up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	c.componentUp.WithLabelValues(component).Set(value)
}
