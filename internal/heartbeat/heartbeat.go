// Package heartbeat sends the periodic liveness messages that keep the vehicle
// aware of its ground station.
package heartbeat

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultPeriod is the interval between heartbeats
const DefaultPeriod = time.Second

// ErrInvalidConfig is returned by New when the sender cannot be built
var ErrInvalidConfig = errors.New("invalid heartbeat configuration")

// Link is the part of the vehicle link used to send heartbeats
type Link interface {
	SendHeartbeat() error
}

// WithLogger sets the logger for the sender
func WithLogger(logger *slog.Logger) func(s *Sender) {
	return func(s *Sender) {
		s.logger = logger
	}
}

// WithPeriod sets the interval between heartbeats
func WithPeriod(period time.Duration) func(s *Sender) {
	return func(s *Sender) {
		s.period = period
	}
}

// Sender sends heartbeats over the link and counts those delivered
type Sender struct {
	link   Link
	period time.Duration
	sent   atomic.Uint64
	logger *slog.Logger
}

// New returns a heartbeat sender for the given link
func New(link Link, options ...func(s *Sender)) (*Sender, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Sender{
		link:   link,
		period: DefaultPeriod,
		logger: logger,
	}

	for _, option := range options {
		option(&s)
	}

	if s.link == nil {
		return nil, fmt.Errorf("%w: link is required", ErrInvalidConfig)
	}
	if s.period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %s", ErrInvalidConfig, s.period)
	}

	return &s, nil
}

// Send sends a single heartbeat
func (s *Sender) Send() error {
	if err := s.link.SendHeartbeat(); err != nil {
		return fmt.Errorf("sending heartbeat: %w", err)
	}

	n := s.sent.Add(1)
	s.logger.Debug("heartbeat sent", slog.Uint64("count", n))
	return nil
}

// Period returns the interval between heartbeats
func (s *Sender) Period() time.Duration {
	return s.period
}

// Sent returns the number of heartbeats delivered so far
func (s *Sender) Sent() uint64 {
	return s.sent.Load()
}
