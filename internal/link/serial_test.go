package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort is an in-memory serial port. The test writes inbound lines to
// vehicle and inspects what the link wrote through written.
type fakePort struct {
	r       *io.PipeReader
	vehicle *io.PipeWriter

	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, vehicle: w}
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.out.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	return p.r.Close()
}

func (p *fakePort) send(t *testing.T, lines ...string) {
	for _, line := range lines {
		_, err := io.WriteString(p.vehicle, line+"\n")
		assert.NoError(t, err)
	}
}

func (p *fakePort) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return strings.Split(strings.TrimSpace(p.out.String()), "\n")
}

func TestSerialLink_ReadTelemetry(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port, WithReadTimeout(time.Second))
	defer l.Close()

	// a vehicle heartbeat and a malformed frame are skipped, the last frame
	// has unknown altitude and yaw
	go port.send(t,
		"HB,1,3,0,0,4",
		"TLM,1000,1,2,3,0,0,0,0.5",
		"TLM,broken",
		"TLM,2000,4,5,,0,0,0,",
	)

	s, err := l.ReadTelemetry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.X)
	assert.Equal(t, 3.0, *s.Z)

	s, err = l.ReadTelemetry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.X)
	assert.False(t, s.HasAltitude())
	assert.False(t, s.HasYaw())
}

func TestSerialLink_ReadTimeout(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port, WithReadTimeout(20*time.Millisecond))
	defer l.Close()

	_, err := l.ReadTelemetry(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTransient(err))
}

func TestSerialLink_ContextCancelled(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port, WithReadTimeout(time.Minute))
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.ReadTelemetry(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))
}

func TestSerialLink_EndOfStreamDisconnects(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port, WithReadTimeout(time.Second))
	defer l.Close()

	require.NoError(t, port.vehicle.Close())

	_, err := l.ReadTelemetry(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.False(t, IsTransient(err))

	// writes fail too once the link is gone
	assert.ErrorIs(t, l.SendHeartbeat(), ErrDisconnected)
}

func TestSerialLink_ReadError(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port, WithReadTimeout(time.Second))
	defer l.Close()

	require.NoError(t, port.vehicle.CloseWithError(errors.New("cable unplugged")))

	_, err := l.ReadTelemetry(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSerialLink_Send(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port)
	defer l.Close()

	require.NoError(t, l.SendAltitudeCommand(10, 1))
	require.NoError(t, l.SendYawCommand(90, 5, -1, true))
	require.NoError(t, l.SendHeartbeat())

	assert.Equal(t, []string{
		"CMD,1,0,113,0,1,0,0,0,0,0,10",
		"CMD,1,0,115,0,90,5,-1,1,0,0,0",
		"HB,6,8,0,0,4",
	}, port.written())
}

func TestSerialLink_ConcurrentWritesDoNotInterleave(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port)
	defer l.Close()

	const perWriter = 50

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			assert.NoError(t, l.SendHeartbeat())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			assert.NoError(t, l.SendAltitudeCommand(12.5, 1))
		}
	}()
	wg.Wait()

	lines := port.written()
	require.Len(t, lines, 2*perWriter)
	for _, line := range lines {
		switch FrameTag(line) {
		case FrameHeartbeat:
			_, err := ParseHeartbeat(line)
			assert.NoError(t, err)
		case FrameCommand:
			_, err := ParseCommandLong(line)
			assert.NoError(t, err)
		default:
			t.Errorf("unexpected line %q", line)
		}
	}
}

func TestSerialLink_Close(t *testing.T) {
	port := newFakePort()
	l := NewSerialLink(port)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close()) // idempotent

	_, err := l.ReadTelemetry(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.ErrorIs(t, l.SendHeartbeat(), ErrDisconnected)
}

func TestPortOptions_Normalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 115200, Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)

	invalid := []PortOptions{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	}
	for _, o := range invalid {
		_, err := o.Normalize()
		var cfgErr *ConfigError
		assert.Truef(t, errors.As(err, &cfgErr), "%+v: expected ConfigError, got %v", o, err)
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, Parity: "O", StopBits: 2}.SerialMode()
	require.NoError(t, err)

	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OddParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
}
