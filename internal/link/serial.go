package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

const (
	// DefaultReadTimeout is how long ReadTelemetry waits for a frame
	DefaultReadTimeout = time.Second

	// DefaultFrameBuffer is the number of decoded telemetry frames held while
	// no reader is waiting. Older frames are dropped when it is full.
	DefaultFrameBuffer = 64
)

// WithLogger sets the logger for the link
func WithLogger(logger *slog.Logger) func(l *SerialLink) {
	return func(l *SerialLink) {
		l.logger = logger.With(slog.String("component", "link"))
	}
}

// WithReadTimeout sets how long ReadTelemetry waits before returning ErrTimeout
func WithReadTimeout(timeout time.Duration) func(l *SerialLink) {
	return func(l *SerialLink) {
		l.readTimeout = timeout
	}
}

// WithFrameBuffer sets the capacity of the decoded telemetry buffer
func WithFrameBuffer(size int) func(l *SerialLink) {
	return func(l *SerialLink) {
		l.frameBuffer = size
	}
}

// SerialLink is a Link speaking the line-oriented frame protocol over a byte
// stream, typically a serial telemetry radio. A background goroutine scans
// inbound lines and decodes telemetry frames; writes from different goroutines
// are serialised so that frames never interleave on the wire.
type SerialLink struct {
	port io.ReadWriteCloser

	frames  chan *telemetry.Snapshot
	readErr error // set before frames is closed

	writeMu sync.Mutex

	lost    atomic.Bool
	closing atomic.Bool
	wg      sync.WaitGroup

	readTimeout time.Duration
	frameBuffer int
	logger      *slog.Logger
}

// NewSerialLink creates a link on top of an already opened port and starts
// reading from it.
func NewSerialLink(port io.ReadWriteCloser, options ...func(l *SerialLink)) *SerialLink {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	l := SerialLink{
		port:        port,
		readTimeout: DefaultReadTimeout,
		frameBuffer: DefaultFrameBuffer,
		logger:      logger,
	}

	for _, option := range options {
		option(&l)
	}

	l.frames = make(chan *telemetry.Snapshot, max(l.frameBuffer, 1))

	l.wg.Add(1)
	go l.monitor()

	return &l
}

// OpenSerial opens the serial port at path and returns a link reading from it
func OpenSerial(path string, opts PortOptions, options ...func(l *SerialLink)) (*SerialLink, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}

	return NewSerialLink(port, options...), nil
}

// monitor reads lines from the port and forwards decoded telemetry frames.
// The link is marked lost when the stream ends or fails.
func (l *SerialLink) monitor() {
	defer l.wg.Done()

	scan := bufio.NewScanner(l.port)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}

		if FrameTag(line) != FrameTelemetry {
			l.logger.Debug("ignoring frame", slog.String("line", line))
			continue
		}

		s, err := ParseTelemetry(line)
		if err != nil {
			l.logger.Warn(fmt.Sprintf("error parsing telemetry: %s", err.Error()), slog.String("line", line))
			continue
		}

		l.push(s)
	}

	err := scan.Err()
	switch {
	case l.closing.Load():
		l.readErr = fmt.Errorf("%w: link closed", ErrDisconnected)
	case err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed):
		l.readErr = fmt.Errorf("%w: error reading port: %w", ErrDisconnected, err)
		l.logger.Error(l.readErr.Error())
	default:
		l.readErr = fmt.Errorf("%w: end of stream", ErrDisconnected)
		l.logger.Warn(l.readErr.Error())
	}

	l.lost.Store(true)
	close(l.frames)
}

// push hands a frame to readers, dropping the oldest buffered frame when
// nobody has been reading.
func (l *SerialLink) push(s *telemetry.Snapshot) {
	for {
		select {
		case l.frames <- s:
			return
		default:
		}

		select {
		case <-l.frames:
			l.logger.Debug("telemetry buffer full, dropped oldest frame")
		default:
		}
	}
}

// ReadTelemetry waits for the next telemetry frame. It returns ErrTimeout when
// no frame arrives within the read timeout and ErrDisconnected once the
// underlying stream has ended.
func (l *SerialLink) ReadTelemetry(ctx context.Context) (*telemetry.Snapshot, error) {
	timer := time.NewTimer(l.readTimeout)
	defer timer.Stop()

	select {
	case s, ok := <-l.frames:
		if !ok {
			return nil, l.readErr
		}
		return s, nil

	case <-timer.C:
		return nil, ErrTimeout

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *SerialLink) SendAltitudeCommand(targetZ, rate float64) error {
	return l.writeFrame(NewAltitudeCommand(targetZ, rate).Encode())
}

func (l *SerialLink) SendYawCommand(deltaDegrees, rateDegS float64, direction int, relative bool) error {
	return l.writeFrame(NewYawCommand(deltaDegrees, rateDegS, direction, relative).Encode())
}

func (l *SerialLink) SendHeartbeat() error {
	return l.writeFrame(GCSHeartbeat().Encode())
}

func (l *SerialLink) writeFrame(frame string) error {
	if l.lost.Load() || l.closing.Load() {
		return ErrDisconnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	frame += "\n"
	n, err := l.port.Write([]byte(frame))
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, fs.ErrClosed) {
			return fmt.Errorf("%w: %w", ErrDisconnected, err)
		}
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if n != len(frame) {
		return ErrWriteFailed
	}
	return nil
}

// Close closes the port and waits for the reader goroutine to finish
func (l *SerialLink) Close() error {
	if !l.closing.CompareAndSwap(false, true) {
		return nil // already closed
	}

	err := l.port.Close()
	l.wg.Wait()
	return err
}
