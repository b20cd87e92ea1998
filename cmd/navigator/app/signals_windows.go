//go:build windows

package app

import "os"

// notifyPauseResume is a no-op, there are no user signals on Windows
func notifyPauseResume(_, _ chan<- os.Signal) (stop func()) {
	return func() {}
}
