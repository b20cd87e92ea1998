// Package link implements the vehicle link: the bidirectional channel used by
// the pipeline workers to read telemetry from the vehicle and to send it
// navigation commands and heartbeats.
package link

import (
	"context"
	"errors"

	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

var (
	// ErrTimeout is returned when no telemetry arrived within the read timeout.
	// It is transient, callers are expected to retry.
	ErrTimeout = errors.New("telemetry read timeout")

	// ErrDisconnected is returned once the link is permanently lost
	ErrDisconnected = errors.New("link disconnected")

	// ErrMalformedFrame is returned when a frame cannot be decoded
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrWriteFailed is returned when a frame could not be fully written
	ErrWriteFailed = errors.New("failed to write frame")
)

// Link is the vehicle link shared by the telemetry, command and heartbeat
// workers. Implementations must allow reads and writes from different
// goroutines to interleave. Outbound messages are fire-and-forget: a nil error
// means the message left this side of the link, not that the vehicle acted on it.
type Link interface {
	telemetry.Reader

	// SendAltitudeCommand asks the vehicle to climb or descend to targetZ
	// at the given rate in m/s.
	SendAltitudeCommand(targetZ, rate float64) error

	// SendYawCommand asks the vehicle to change heading by deltaDegrees at
	// rateDegS. Direction is +1 or -1, relative selects a heading change
	// relative to the current heading rather than an absolute heading.
	SendYawCommand(deltaDegrees, rateDegS float64, direction int, relative bool) error

	// SendHeartbeat sends a liveness heartbeat to the vehicle
	SendHeartbeat() error

	// Close releases the underlying transport
	Close() error
}

// ConfigError is a custom error type for link configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// IsTransient returns true if err is a read failure that should be retried
// rather than ending the caller's loop.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrDisconnected) && !errors.Is(err, context.Canceled)
}
