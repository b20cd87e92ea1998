// Package controller implements the coordination handle shared by all pipeline
// workers. A supervisor uses it to pause, resume and stop the workers; each
// worker polls it between units of work.
package controller

import (
	"sync"
	"sync/atomic"
)

const (
	Running State = iota
	Paused
	Stopping
)

// State is the lifecycle state observed by workers polling the Controller.
type State int

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Controller carries the exit and pause flags shared by the workers of one
// pipeline run. The zero value is not usable, create it with New.
//
// Exit is monotonic: once requested it is never cleared. Pause may be toggled
// any number of times. A worker blocked in CheckPause is released by either a
// resume or an exit request.
type Controller struct {
	exitRequested atomic.Bool
	exitOnce      sync.Once
	done          chan struct{}

	mu      sync.Mutex
	paused  bool
	resumed chan struct{} // closed and replaced on every resume
}

// New creates a Controller in the running state.
func New() *Controller {
	return &Controller{
		done:    make(chan struct{}),
		resumed: make(chan struct{}),
	}
}

// RequestExit asks every worker to stop. Safe to call multiple times.
func (c *Controller) RequestExit() {
	c.exitOnce.Do(func() {
		c.exitRequested.Store(true)
		close(c.done)
	})
}

// IsExitRequested returns true once RequestExit has been called.
func (c *Controller) IsExitRequested() bool {
	return c.exitRequested.Load()
}

// Done returns a channel that is closed when exit is requested. Workers use it
// to cut idle sleeps short.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// RequestPause asks workers to suspend before their next unit of work.
func (c *Controller) RequestPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// RequestResume releases paused workers.
func (c *Controller) RequestResume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}

	c.paused = false
	close(c.resumed)
	c.resumed = make(chan struct{})
}

// IsPaused returns true while a pause is in effect.
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// CheckPause blocks the calling worker while the pipeline is paused. It returns
// as soon as the pause is lifted or exit is requested, whichever comes first,
// and returns immediately when not paused.
func (c *Controller) CheckPause() {
	for {
		if c.IsExitRequested() {
			return
		}

		c.mu.Lock()
		if !c.paused {
			c.mu.Unlock()
			return
		}
		resumed := c.resumed
		c.mu.Unlock()

		select {
		case <-resumed:
		case <-c.done:
			return
		}
	}
}

// State reports the state a worker polling the Controller right now would
// observe. Exit takes precedence over pause.
func (c *Controller) State() State {
	if c.IsExitRequested() {
		return Stopping
	}
	if c.IsPaused() {
		return Paused
	}
	return Running
}
