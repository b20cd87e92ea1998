package worker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/controller"
	"github.com/roman-kulish/drone-navigator/internal/queue"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// Command consumes snapshots from in, sends at most one navigation command per
// snapshot toward target and puts a report of every command sent on reports.
// A command that fails to send is logged and the worker moves on to the next
// snapshot. If the commander cannot be built the worker logs the error and
// returns without entering its loop.
func Command(ctrl *controller.Controller, sender command.Sender, target telemetry.Position, in *queue.Queue[*telemetry.Snapshot], reports *queue.Queue[command.Report], opts ...Option) {
	o := newOptions("command", opts)

	commanderOptions := append([]func(c *command.Commander){command.WithLogger(o.logger)}, o.commanderOptions...)
	commander, err := command.New(sender, target, commanderOptions...)
	if err != nil {
		o.logger.Error(fmt.Sprintf("error creating commander: %s", err.Error()))
		return
	}

	o.metrics.WorkerStarted()
	defer o.metrics.WorkerStopped()

	o.logger.Info("command worker started", slog.String("target", target.String()))
	defer o.logger.Info("command worker stopped")

	for !ctrl.IsExitRequested() {
		ctrl.CheckPause()
		if ctrl.IsExitRequested() {
			break
		}

		s, ok := in.TryGet()
		if !ok {
			sleep(ctrl, o.pollInterval)
			continue
		}
		if s == nil {
			continue
		}

		o.metrics.SnapshotProcessed()
		o.metrics.SetQueueDepth(TelemetryQueue, in.Len())

		if o.observer != nil {
			o.observer(s)
		}

		report, err := commander.Process(s)
		if err != nil {
			var sendErr *command.SendError
			if errors.As(err, &sendErr) {
				o.metrics.CommandFailed(sendErr.Action.Label())
			}
			o.logger.Error(err.Error())
			continue
		}
		if report == nil {
			continue
		}

		o.logger.Info(report.String())
		reports.Put(*report)

		o.metrics.CommandSent(report.Action.Label())
		o.metrics.SetQueueDepth(ReportQueue, reports.Len())
	}
}
