// Package worker implements the three pipeline workers. Each worker is a plain
// function meant to run in its own goroutine; it loops until its controller
// requests exit or its link is lost, honouring pause requests between units
// of work.
package worker

import (
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/controller"
	"github.com/roman-kulish/drone-navigator/internal/heartbeat"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// DefaultPollInterval is how long the command worker idles on an empty queue
const DefaultPollInterval = 10 * time.Millisecond

// Queue names used in metrics
const (
	TelemetryQueue = "telemetry"
	ReportQueue    = "reports"
)

type options struct {
	logger           *slog.Logger
	metrics          *metrics.Metrics
	pollInterval     time.Duration
	heartbeatPeriod  time.Duration
	commanderOptions []func(c *command.Commander)
	observer         func(s *telemetry.Snapshot)
}

// Option configures a worker
type Option func(o *options)

// WithLogger sets the logger, each worker adds its own name to it
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the collectors updated by the worker
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithPollInterval sets how long the command worker sleeps when the telemetry
// queue is empty
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithHeartbeatPeriod sets the interval between heartbeats
func WithHeartbeatPeriod(d time.Duration) Option {
	return func(o *options) {
		o.heartbeatPeriod = d
	}
}

// WithCommanderOptions passes options to the commander built by the command
// worker
func WithCommanderOptions(opts ...func(c *command.Commander)) Option {
	return func(o *options) {
		o.commanderOptions = append(o.commanderOptions, opts...)
	}
}

// WithObserver sets a callback invoked by the command worker with every
// snapshot it takes from the queue, before the snapshot is processed. The
// callback runs on the worker goroutine and must not modify the snapshot.
func WithObserver(fn func(s *telemetry.Snapshot)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

func newOptions(worker string, opts []Option) options {
	o := options{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		pollInterval:    DefaultPollInterval,
		heartbeatPeriod: heartbeat.DefaultPeriod,
	}

	for _, opt := range opts {
		opt(&o)
	}

	o.logger = o.logger.With(slog.String("worker", worker))
	return o
}

// sleep waits for d or until exit is requested, whichever comes first
func sleep(ctrl *controller.Controller, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctrl.Done():
	}
}
