package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()

	m, err := New(reg)
	require.NoError(t, err)

	m.SnapshotRead()
	m.SnapshotRead()
	m.SnapshotProcessed()
	m.ReadFailed(ReadTimeout)
	m.CommandSent("altitude")
	m.CommandFailed("yaw")
	m.HeartbeatSent()
	m.HeartbeatFailed()
	m.SetQueueDepth("telemetry", 7)
	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerStopped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.snapshotsRead))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshotsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readFailures.WithLabelValues(ReadTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsSent.WithLabelValues("altitude")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandFailures.WithLabelValues("yaw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeatsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeatFailures))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("telemetry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workersRunning))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SnapshotRead()
		m.SnapshotProcessed()
		m.ReadFailed(ReadError)
		m.CommandSent("altitude")
		m.CommandFailed("altitude")
		m.HeartbeatSent()
		m.HeartbeatFailed()
		m.SetQueueDepth("reports", 1)
		m.WorkerStarted()
		m.WorkerStopped()
	})
}
