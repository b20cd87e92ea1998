package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/controller"
	"github.com/roman-kulish/drone-navigator/internal/link"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/storage"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/worker"
)

const longWait = 5 * time.Second

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fastVehicle completes every command within a single simulator step
func fastVehicle() (*link.Simulator, func(*Orchestrator)) {
	sim := link.NewSimulator(link.WithSimPeriod(10 * time.Millisecond))
	opts := WithWorkerOptions(
		worker.WithPollInterval(time.Millisecond),
		worker.WithHeartbeatPeriod(20*time.Millisecond),
		worker.WithCommanderOptions(command.WithClimbRate(200), command.WithYawRate(1e6)),
	)
	return sim, opts
}

func runAsync(t *testing.T, ctx context.Context, o *Orchestrator) <-chan *Summary {
	done := make(chan *Summary, 1)
	go func() {
		summary, err := o.Run(ctx)
		assert.NoError(t, err)
		done <- summary
	}()
	return done
}

func wait(t *testing.T, done <-chan *Summary) *Summary {
	t.Helper()

	select {
	case summary := <-done:
		require.NotNil(t, summary)
		return summary
	case <-time.After(longWait):
		t.Fatal("orchestrator did not stop")
		return nil
	}
}

func TestOrchestrator_RunFor(t *testing.T) {
	sim, opts := fastVehicle()
	target := telemetry.Position{X: 0, Y: 10, Z: 10}

	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "flight.sqlite"))
	t.Cleanup(func() { _ = store.Close() })

	m, err := metrics.New(nil)
	require.NoError(t, err)

	o := NewOrchestrator(sim, target, discard,
		opts,
		WithRunFor(300*time.Millisecond),
		WithStore(store, "sim", map[string]string{"link": "sim"}),
		WithMaxBatchSize(4),
		WithMetrics(m),
	)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.NotZero(t, summary.SessionID)
	assert.GreaterOrEqual(t, summary.Duration, 300*time.Millisecond)
	assert.Positive(t, summary.Snapshots)
	require.NotEmpty(t, summary.Reports)
	assert.Equal(t, command.ChangeAltitude, summary.Reports[0].Action)

	// the vehicle reached its target
	assert.InDelta(t, target.Z, sim.Position().Z, command.DefaultHeightTolerance)
	assert.Positive(t, sim.Heartbeats())
	assert.Equal(t, controller.Stopping, o.State())

	ctx := context.Background()

	session, err := store.Session(ctx, summary.SessionID)
	require.NoError(t, err)
	assert.NotNil(t, session.EndTime)
	assert.Equal(t, target, session.Target)
	assert.Equal(t, "sim", session.LinkType)

	// everything observed was logged, nothing was lost in the final drain
	track, err := store.Track(ctx, summary.SessionID)
	require.NoError(t, err)
	assert.Len(t, track, int(summary.Snapshots))

	reports, err := store.Reports(ctx, summary.SessionID)
	require.NoError(t, err)
	require.Len(t, reports, len(summary.Reports))
	for i, r := range reports {
		assert.Equal(t, summary.Reports[i], r.Report)
	}
}

func TestOrchestrator_Stop(t *testing.T) {
	sim, opts := fastVehicle()
	o := NewOrchestrator(sim, telemetry.Position{Z: 5}, discard, opts)

	done := runAsync(t, context.Background(), o)

	time.Sleep(50 * time.Millisecond)
	o.Stop()

	summary := wait(t, done)
	assert.Zero(t, summary.SessionID)
	assert.Equal(t, controller.Stopping, o.State())
}

func TestOrchestrator_ContextCancel(t *testing.T) {
	sim, opts := fastVehicle()
	o := NewOrchestrator(sim, telemetry.Position{Z: 5}, discard, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(t, ctx, o)

	time.Sleep(50 * time.Millisecond)
	cancel()

	summary := wait(t, done)
	assert.Positive(t, summary.Snapshots)
}

func TestOrchestrator_PauseResume(t *testing.T) {
	sim, opts := fastVehicle()

	// far enough to keep climbing for the whole test
	o := NewOrchestrator(sim, telemetry.Position{Z: 1000}, discard, opts)

	done := runAsync(t, context.Background(), o)

	o.Pause()
	assert.Equal(t, controller.Paused, o.State())

	// paused workers stop commanding the vehicle
	time.Sleep(50 * time.Millisecond)
	before := len(sim.Commands())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, len(sim.Commands()))

	o.Resume()
	assert.Equal(t, controller.Running, o.State())

	require.Eventually(t, func() bool {
		return len(sim.Commands()) > before
	}, longWait, 10*time.Millisecond)

	o.Stop()
	wait(t, done)
}

func TestOrchestrator_LinkLost(t *testing.T) {
	sim, opts := fastVehicle()
	o := NewOrchestrator(sim, telemetry.Position{Z: 5}, discard, opts, WithRunFor(200*time.Millisecond))

	done := runAsync(t, context.Background(), o)

	time.Sleep(30 * time.Millisecond)
	sim.Disconnect()

	// the command worker keeps polling its queue until the run time elapses
	summary := wait(t, done)
	assert.GreaterOrEqual(t, summary.Duration, 200*time.Millisecond)
}

func TestCreateStorage(t *testing.T) {
	dir := t.TempDir()

	store, path, err := createStorage(&StorageConfig{DataDirectory: dir})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, `^flight_\d{8}_\d{6}\.sqlite$`, filepath.Base(path))

	_, _, err = createStorage(&StorageConfig{DataDirectory: filepath.Join(dir, "missing")})
	assert.Error(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, _, err = createStorage(&StorageConfig{DataDirectory: file})
	assert.Error(t, err)
}
