//go:build !windows

package app

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyPauseResume relays SIGUSR1 to pause and SIGUSR2 to resume
func notifyPauseResume(pause, resume chan<- os.Signal) (stop func()) {
	signal.Notify(pause, syscall.SIGUSR1)
	signal.Notify(resume, syscall.SIGUSR2)

	return func() {
		signal.Stop(pause)
		signal.Stop(resume)
	}
}
