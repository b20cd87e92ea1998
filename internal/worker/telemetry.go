package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/drone-navigator/internal/controller"
	"github.com/roman-kulish/drone-navigator/internal/link"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/queue"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// Telemetry reads snapshots from the vehicle and puts them on out in the
// order they were read. Read timeouts are retried. The worker returns when
// exit is requested or when the link reports it is disconnected; in the
// latter case the other workers are left running.
func Telemetry(ctx context.Context, ctrl *controller.Controller, r telemetry.Reader, out *queue.Queue[*telemetry.Snapshot], opts ...Option) {
	o := newOptions("telemetry", opts)

	o.metrics.WorkerStarted()
	defer o.metrics.WorkerStopped()

	o.logger.Info("telemetry worker started")
	defer o.logger.Info("telemetry worker stopped")

	for !ctrl.IsExitRequested() {
		ctrl.CheckPause()
		if ctrl.IsExitRequested() {
			break
		}

		s, err := r.ReadTelemetry(ctx)
		if err != nil {
			if !link.IsTransient(err) {
				o.logger.Error(fmt.Sprintf("telemetry link lost: %s", err.Error()))
				return
			}

			if errors.Is(err, link.ErrTimeout) {
				o.metrics.ReadFailed(metrics.ReadTimeout)
			} else {
				o.metrics.ReadFailed(metrics.ReadError)
			}
			o.logger.Warn(fmt.Sprintf("error reading telemetry: %s", err.Error()))
			continue
		}
		if s == nil {
			o.logger.Warn("telemetry read returned no snapshot")
			continue
		}

		out.Put(s)

		o.metrics.SnapshotRead()
		o.metrics.SetQueueDepth(TelemetryQueue, out.Len())
		o.logger.Debug("telemetry received", slog.String("snapshot", s.String()))
	}
}
