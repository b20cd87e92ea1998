package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/controller"
	"github.com/roman-kulish/drone-navigator/internal/link"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/queue"
	"github.com/roman-kulish/drone-navigator/internal/storage"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/worker"
)

const (
	maxBatchSize  = defaultMaxBatchSize
	drainInterval = 100 * time.Millisecond
)

// WithStore enables the flight log. Every run creates a session tagged with
// linkType and config.
func WithStore(store storage.Store, linkType string, config any) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.linkType = linkType
		o.config = config
	}
}

// WithMaxBatchSize sets the maximum number of snapshots stored within a
// single database transaction.
func WithMaxBatchSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.maxBatchSize = size
	}
}

// WithMetrics sets the collectors updated by the workers
func WithMetrics(m *metrics.Metrics) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithRunFor requests exit once the pipeline has been running for d
func WithRunFor(d time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.runFor = d
	}
}

// WithWorkerOptions passes options to every worker
func WithWorkerOptions(opts ...worker.Option) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.workerOptions = append(o.workerOptions, opts...)
	}
}

// Summary describes a finished run
type Summary struct {
	RunID     string
	SessionID int64 // zero without a flight log
	Duration  time.Duration
	Snapshots int64
	Reports   []command.Report
}

// Orchestrator provisions the queues and the controller, runs the telemetry,
// command and heartbeat workers against a single vehicle link, and records
// what they do in the flight log. Only the orchestrator writes to the store.
type Orchestrator struct {
	link   link.Link
	target telemetry.Position

	logger  *slog.Logger
	metrics *metrics.Metrics

	store    storage.Store
	linkType string
	config   any

	runFor        time.Duration
	maxBatchSize  int
	workerOptions []worker.Option

	ctrl      *controller.Controller
	telemetry *queue.Queue[*telemetry.Snapshot]
	reports   *queue.Queue[command.Report]

	mu        sync.Mutex
	pending   []*telemetry.Snapshot // observed, not yet stored
	snapshots int64

	sessionID int64
}

// NewOrchestrator creates a new Orchestrator steering the vehicle behind l
// toward target
func NewOrchestrator(l link.Link, target telemetry.Position, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		link:         l,
		target:       target,
		logger:       logger,
		maxBatchSize: maxBatchSize,
		ctrl:         controller.New(),
		telemetry:    queue.New[*telemetry.Snapshot](),
		reports:      queue.New[command.Report](),
	}

	for _, option := range options {
		option(&o)
	}

	if o.maxBatchSize < 1 {
		o.maxBatchSize = maxBatchSize
	}

	return &o
}

// Pause suspends all workers at their next check
func (o *Orchestrator) Pause() {
	o.logger.Info("pausing workers")
	o.ctrl.RequestPause()
}

// Resume wakes paused workers
func (o *Orchestrator) Resume() {
	o.logger.Info("resuming workers")
	o.ctrl.RequestResume()
}

// Stop requests all workers to exit, Run returns once they have
func (o *Orchestrator) Stop() {
	o.ctrl.RequestExit()
}

// State returns the current pipeline state
func (o *Orchestrator) State() controller.State {
	return o.ctrl.State()
}

// Run starts the workers and supervises them until ctx is cancelled, Stop is
// called, the run time elapses or every worker has returned on its own. It
// returns after all workers have stopped and all reports and telemetry have
// been written to the flight log.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	logger := o.logger.With(slog.String("run", runID))

	if o.store != nil {
		sessionID, err := o.store.CreateSession(ctx, runID, o.linkType, o.target, o.config)
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		o.sessionID = sessionID
	}

	start := time.Now()
	logger.Info("navigator started", slog.String("target", o.target.String()))

	// workers observe exit through the controller, cancelling ctx must not
	// abort a read that is in flight
	workerCtx := context.WithoutCancel(ctx)
	opts := append([]worker.Option{
		worker.WithLogger(logger),
		worker.WithMetrics(o.metrics),
	}, o.workerOptions...)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		worker.Telemetry(workerCtx, o.ctrl, o.link, o.telemetry, opts...)
	}()
	go func() {
		defer wg.Done()
		worker.Command(o.ctrl, o.link, o.target, o.telemetry, o.reports, append(opts, worker.WithObserver(o.observe))...)
	}()
	go func() {
		defer wg.Done()
		worker.Heartbeat(o.ctrl, o.link, opts...)
	}()

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	var reports []command.Report
	reports = append(reports, o.supervise(ctx, workersDone, logger)...)

	o.ctrl.RequestExit()
	<-workersDone

	// final drain, the caller may have cancelled ctx already
	reports = append(reports, o.drain(context.WithoutCancel(ctx), logger)...)

	summary := Summary{
		RunID:     runID,
		SessionID: o.sessionID,
		Duration:  time.Since(start),
		Snapshots: o.observed(),
		Reports:   reports,
	}

	if o.store != nil {
		if err := o.store.EndSession(context.WithoutCancel(ctx), o.sessionID, time.Now()); err != nil {
			logger.Error(fmt.Sprintf("error ending session: %s", err.Error()))
		}
	}

	logger.Info("navigator stopped",
		slog.String("duration", summary.Duration.Round(time.Millisecond).String()),
		slog.String("snapshots", humanize.Comma(summary.Snapshots)),
		slog.String("commands", humanize.Comma(int64(len(summary.Reports)))),
	)

	return &summary, nil
}

// supervise relays signals and requests exit when the run is over, draining
// reports and telemetry as it goes
func (o *Orchestrator) supervise(ctx context.Context, workersDone <-chan struct{}, logger *slog.Logger) (reports []command.Report) {
	pause := make(chan os.Signal, 1)
	resume := make(chan os.Signal, 1)
	stop := notifyPauseResume(pause, resume)
	defer stop()

	var deadline <-chan time.Time
	if o.runFor > 0 {
		timer := time.NewTimer(o.runFor)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
			return

		case <-deadline:
			logger.Info(fmt.Sprintf("run time of %s elapsed", o.runFor))
			return

		case <-o.ctrl.Done():
			return

		case <-workersDone:
			logger.Warn("all workers stopped")
			return

		case <-pause:
			o.Pause()

		case <-resume:
			o.Resume()

		case <-ticker.C:
			reports = append(reports, o.drain(ctx, logger)...)
		}
	}
}

// observe runs on the command worker for every snapshot it dequeues
func (o *Orchestrator) observe(s *telemetry.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.snapshots++
	if o.store != nil {
		o.pending = append(o.pending, s)
	}
}

func (o *Orchestrator) observed() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snapshots
}

// drain takes every report from the report queue and writes the reports and
// observed telemetry to the flight log. Storage errors are logged only, the
// pipeline keeps running without its log.
func (o *Orchestrator) drain(ctx context.Context, logger *slog.Logger) []command.Report {
	reports := o.reports.Drain()
	o.metrics.SetQueueDepth(worker.ReportQueue, 0)

	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	if o.store == nil {
		return reports
	}

	for chunk := range slices.Chunk(pending, o.maxBatchSize) {
		if err := o.store.StoreTelemetry(ctx, o.sessionID, chunk); err != nil {
			logger.Error(fmt.Sprintf("error storing telemetry: %s", err.Error()))
		}
	}

	now := time.Now()
	for _, report := range reports {
		if err := o.store.StoreReport(ctx, o.sessionID, now, report); err != nil {
			logger.Error(fmt.Sprintf("error storing report: %s", err.Error()))
		}
	}

	return reports
}
