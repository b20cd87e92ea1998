package worker

import (
	"errors"
	"fmt"

	"github.com/roman-kulish/drone-navigator/internal/controller"
	"github.com/roman-kulish/drone-navigator/internal/heartbeat"
	"github.com/roman-kulish/drone-navigator/internal/link"
)

// Heartbeat sends a heartbeat every period until exit is requested. Failed
// heartbeats are logged; a disconnected link stops the worker.
func Heartbeat(ctrl *controller.Controller, l heartbeat.Link, opts ...Option) {
	o := newOptions("heartbeat", opts)

	sender, err := heartbeat.New(l, heartbeat.WithLogger(o.logger), heartbeat.WithPeriod(o.heartbeatPeriod))
	if err != nil {
		o.logger.Error(fmt.Sprintf("error creating heartbeat sender: %s", err.Error()))
		return
	}

	o.metrics.WorkerStarted()
	defer o.metrics.WorkerStopped()

	o.logger.Info("heartbeat worker started")
	defer o.logger.Info("heartbeat worker stopped")

	for !ctrl.IsExitRequested() {
		ctrl.CheckPause()
		if ctrl.IsExitRequested() {
			break
		}

		if err := sender.Send(); err != nil {
			o.metrics.HeartbeatFailed()

			if errors.Is(err, link.ErrDisconnected) {
				o.logger.Error(fmt.Sprintf("heartbeat link lost: %s", err.Error()))
				return
			}
			o.logger.Warn(err.Error())
		} else {
			o.metrics.HeartbeatSent()
		}

		sleep(ctrl, sender.Period())
	}
}
