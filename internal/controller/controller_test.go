package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shortWait = 50 * time.Millisecond
	longWait  = 2 * time.Second
)

// checkPauseAsync runs CheckPause in a goroutine and returns a channel closed
// when it returns.
func checkPauseAsync(c *Controller) <-chan struct{} {
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		c.CheckPause()
	}()
	return returned
}

func TestController_InitialState(t *testing.T) {
	c := New()

	assert.False(t, c.IsExitRequested())
	assert.False(t, c.IsPaused())
	assert.Equal(t, Running, c.State())

	select {
	case <-c.Done():
		t.Fatal("done channel closed before exit was requested")
	default:
	}
}

func TestController_CheckPauseNotPaused(t *testing.T) {
	c := New()

	select {
	case <-checkPauseAsync(c):
	case <-time.After(longWait):
		t.Fatal("CheckPause blocked while not paused")
	}
}

func TestController_PauseBlocksUntilResume(t *testing.T) {
	c := New()
	c.RequestPause()
	require.Equal(t, Paused, c.State())

	returned := checkPauseAsync(c)

	select {
	case <-returned:
		t.Fatal("CheckPause returned while paused")
	case <-time.After(shortWait):
	}

	c.RequestResume()

	select {
	case <-returned:
	case <-time.After(longWait):
		t.Fatal("CheckPause did not return after resume")
	}
	assert.Equal(t, Running, c.State())
}

func TestController_PauseBlocksUntilExit(t *testing.T) {
	c := New()
	c.RequestPause()

	returned := checkPauseAsync(c)

	select {
	case <-returned:
		t.Fatal("CheckPause returned while paused")
	case <-time.After(shortWait):
	}

	c.RequestExit()

	select {
	case <-returned:
	case <-time.After(longWait):
		t.Fatal("CheckPause did not return after exit")
	}

	// still paused, but exit wins
	assert.True(t, c.IsPaused())
	assert.Equal(t, Stopping, c.State())
}

func TestController_ExitWithoutPauseReturnsImmediately(t *testing.T) {
	c := New()
	c.RequestExit()

	select {
	case <-checkPauseAsync(c):
	case <-time.After(longWait):
		t.Fatal("CheckPause blocked after exit")
	}

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed after exit")
	}
}

func TestController_ExitIsMonotonicAndIdempotent(t *testing.T) {
	c := New()

	c.RequestExit()
	c.RequestExit()
	c.RequestPause()
	c.RequestResume()

	assert.True(t, c.IsExitRequested())
	assert.Equal(t, Stopping, c.State())
}

func TestController_PauseToggles(t *testing.T) {
	c := New()

	for i := 0; i < 3; i++ {
		c.RequestPause()
		returned := checkPauseAsync(c)

		select {
		case <-returned:
			t.Fatalf("cycle %d: CheckPause returned while paused", i)
		case <-time.After(shortWait):
		}

		c.RequestResume()

		select {
		case <-returned:
		case <-time.After(longWait):
			t.Fatalf("cycle %d: CheckPause did not return after resume", i)
		}
	}

	// resume without pause is a no-op
	c.RequestResume()
	assert.False(t, c.IsPaused())
}

func TestController_ResumeReleasesAllWaiters(t *testing.T) {
	c := New()
	c.RequestPause()

	const waiters = 3
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CheckPause()
		}()
	}

	time.Sleep(shortWait)
	c.RequestResume()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(longWait):
		t.Fatal("not all waiters were released by resume")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "paused", Paused.String())
	assert.Equal(t, "stopping", Stopping.String())
	assert.Equal(t, "unknown", State(42).String())
}
