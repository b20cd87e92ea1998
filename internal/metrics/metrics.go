// Package metrics exposes the pipeline counters as Prometheus collectors.
//
// All methods are safe to call on a nil *Metrics, so workers can be run
// without a registry.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "navigator"

// Read outcomes
const (
	ReadTimeout = "timeout"
	ReadError   = "error"
)

// Metrics holds the pipeline collectors
type Metrics struct {
	snapshotsRead      prometheus.Counter
	snapshotsProcessed prometheus.Counter
	readFailures       *prometheus.CounterVec
	commandsSent       *prometheus.CounterVec
	commandFailures    *prometheus.CounterVec
	heartbeatsSent     prometheus.Counter
	heartbeatFailures  prometheus.Counter
	queueDepth         *prometheus.GaugeVec
	workersRunning     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := Metrics{
		snapshotsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_read_total",
			Help:      "Telemetry snapshots read from the vehicle link.",
		}),
		snapshotsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_processed_total",
			Help:      "Telemetry snapshots consumed by the command worker.",
		}),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_read_failures_total",
			Help:      "Failed telemetry reads by reason.",
		}, []string{"reason"}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Navigation commands sent by action.",
		}, []string{"action"}),
		commandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_failures_total",
			Help:      "Navigation commands that could not be sent.",
		}, []string{"action"}),
		heartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeats sent to the vehicle.",
		}),
		heartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_failures_total",
			Help:      "Heartbeats that could not be sent.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Items waiting in a pipeline queue.",
		}, []string{"queue"}),
		workersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_running",
			Help:      "Pipeline workers currently running.",
		}),
	}

	if reg == nil {
		return &m, nil
	}

	var errs []error
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	return &m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.snapshotsRead,
		m.snapshotsProcessed,
		m.readFailures,
		m.commandsSent,
		m.commandFailures,
		m.heartbeatsSent,
		m.heartbeatFailures,
		m.queueDepth,
		m.workersRunning,
	}
}

func (m *Metrics) SnapshotRead() {
	if m != nil {
		m.snapshotsRead.Inc()
	}
}

func (m *Metrics) SnapshotProcessed() {
	if m != nil {
		m.snapshotsProcessed.Inc()
	}
}

// ReadFailed counts a failed telemetry read, reason is ReadTimeout or ReadError
func (m *Metrics) ReadFailed(reason string) {
	if m != nil {
		m.readFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CommandSent(action string) {
	if m != nil {
		m.commandsSent.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) CommandFailed(action string) {
	if m != nil {
		m.commandFailures.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) HeartbeatSent() {
	if m != nil {
		m.heartbeatsSent.Inc()
	}
}

func (m *Metrics) HeartbeatFailed() {
	if m != nil {
		m.heartbeatFailures.Inc()
	}
}

// SetQueueDepth records the number of items waiting in the named queue
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m != nil {
		m.queueDepth.WithLabelValues(queue).Set(float64(depth))
	}
}

// WorkerStarted and WorkerStopped track the number of running workers
func (m *Metrics) WorkerStarted() {
	if m != nil {
		m.workersRunning.Inc()
	}
}

func (m *Metrics) WorkerStopped() {
	if m != nil {
		m.workersRunning.Dec()
	}
}
