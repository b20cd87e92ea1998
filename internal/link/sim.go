package link

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// DefaultSimPeriod is the telemetry rate of the simulated vehicle
const DefaultSimPeriod = 100 * time.Millisecond

// SimOption configures a Simulator
type SimOption func(s *Simulator)

// WithSimLogger sets the logger for the simulator
func WithSimLogger(logger *slog.Logger) SimOption {
	return func(s *Simulator) {
		s.logger = logger.With(slog.String("component", "simulator"))
	}
}

// WithSimPeriod sets the interval between telemetry frames. Every frame
// advances the simulated clock by the same interval. With a zero period frames
// are produced as fast as they are read and commands complete on the next frame.
func WithSimPeriod(period time.Duration) SimOption {
	return func(s *Simulator) {
		s.period = period
	}
}

// WithStart places the vehicle at pos with the given heading in radians
func WithStart(pos telemetry.Position, yaw float64) SimOption {
	return func(s *Simulator) {
		s.x, s.y, s.z = pos.X, pos.Y, pos.Z
		s.yaw = yaw
		s.targetZ = pos.Z
		s.targetYaw = yaw
	}
}

// WithDrift sets a constant horizontal velocity in m/s
func WithDrift(vx, vy float64) SimOption {
	return func(s *Simulator) {
		s.vx, s.vy = vx, vy
	}
}

// WithoutAltitude makes the simulated vehicle report an unknown altitude
func WithoutAltitude() SimOption {
	return func(s *Simulator) {
		s.hideZ = true
	}
}

// WithoutYaw makes the simulated vehicle report an unknown heading
func WithoutYaw() SimOption {
	return func(s *Simulator) {
		s.hideYaw = true
	}
}

// Simulator is an in-process vehicle implementing Link. It integrates the
// altitude and heading commands it receives and produces telemetry at a fixed
// rate. Commands are recorded in their wire form so tests can inspect them.
type Simulator struct {
	mu sync.Mutex

	clock time.Time
	x, y  float64
	z     float64
	vx    float64
	vy    float64
	vz    float64
	yaw   float64 // radians

	targetZ   float64
	climbRate float64
	targetYaw float64
	yawRate   float64 // rad/s

	hideZ   bool
	hideYaw bool

	commands   []CommandLong
	heartbeats int
	lost       bool

	period time.Duration
	logger *slog.Logger
}

// NewSimulator returns a simulated vehicle hovering at the origin
func NewSimulator(options ...SimOption) *Simulator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Simulator{
		clock:  time.Now().UTC(),
		period: DefaultSimPeriod,
		logger: logger,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// ReadTelemetry waits one period, advances the simulation and returns the
// resulting state.
func (s *Simulator) ReadTelemetry(ctx context.Context) (*telemetry.Snapshot, error) {
	if s.period > 0 {
		timer := time.NewTimer(s.period)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lost {
		return nil, ErrDisconnected
	}

	s.step(s.period.Seconds())
	return s.snapshot(), nil
}

// step advances the vehicle by dt seconds
func (s *Simulator) step(dt float64) {
	s.clock = s.clock.Add(time.Duration(dt * float64(time.Second)))

	s.x += s.vx * dt
	s.y += s.vy * dt

	s.vz = 0
	if dz := s.targetZ - s.z; dz != 0 {
		move := s.climbRate * dt
		if move <= 0 || move >= math.Abs(dz) {
			s.z = s.targetZ
		} else {
			s.z += math.Copysign(move, dz)
			s.vz = math.Copysign(s.climbRate, dz)
		}
	}

	if dyaw := s.targetYaw - s.yaw; dyaw != 0 {
		turn := s.yawRate * dt
		if turn <= 0 || turn >= math.Abs(dyaw) {
			s.yaw = s.targetYaw
		} else {
			s.yaw += math.Copysign(turn, dyaw)
		}
	}
}

func (s *Simulator) snapshot() *telemetry.Snapshot {
	snap := telemetry.Snapshot{
		Timestamp: s.clock,
		X:         s.x,
		Y:         s.y,
		VX:        s.vx,
		VY:        s.vy,
		VZ:        s.vz,
	}
	if !s.hideZ {
		snap.Z = telemetry.Float(s.z)
	}
	if !s.hideYaw {
		snap.Yaw = telemetry.Float(s.yaw)
	}
	return &snap
}

func (s *Simulator) SendAltitudeCommand(targetZ, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lost {
		return ErrDisconnected
	}

	s.commands = append(s.commands, NewAltitudeCommand(targetZ, rate))
	s.targetZ = targetZ
	s.climbRate = math.Abs(rate)

	s.logger.Debug("altitude command", slog.Float64("target_z", targetZ), slog.Float64("rate", rate))
	return nil
}

// SendYawCommand turns the vehicle. A relative change is applied by the sign
// of deltaDegrees; direction only matters for absolute headings where it
// selects the way round.
func (s *Simulator) SendYawCommand(deltaDegrees, rateDegS float64, direction int, relative bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lost {
		return ErrDisconnected
	}

	s.commands = append(s.commands, NewYawCommand(deltaDegrees, rateDegS, direction, relative))
	s.yawRate = math.Abs(rateDegS) * math.Pi / 180

	delta := deltaDegrees * math.Pi / 180
	if relative {
		s.targetYaw = s.yaw + delta
	} else {
		target := delta
		diff := math.Mod(target-s.yaw, 2*math.Pi)
		switch {
		case direction > 0 && diff < 0:
			diff += 2 * math.Pi
		case direction < 0 && diff > 0:
			diff -= 2 * math.Pi
		}
		s.targetYaw = s.yaw + diff
	}

	s.logger.Debug("yaw command", slog.Float64("delta_deg", deltaDegrees), slog.Float64("rate", rateDegS),
		slog.Int("direction", direction), slog.Bool("relative", relative))
	return nil
}

func (s *Simulator) SendHeartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lost {
		return ErrDisconnected
	}

	s.heartbeats++
	return nil
}

// Commands returns the commands received so far, oldest first
func (s *Simulator) Commands() []CommandLong {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]CommandLong(nil), s.commands...)
}

// Heartbeats returns the number of heartbeats received
func (s *Simulator) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.heartbeats
}

// Position returns the current simulated position
func (s *Simulator) Position() telemetry.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	return telemetry.Position{X: s.x, Y: s.y, Z: s.z}
}

// Yaw returns the current simulated heading in radians
func (s *Simulator) Yaw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.yaw
}

// Disconnect simulates losing the link. Every subsequent call fails with
// ErrDisconnected.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lost = true
}

func (s *Simulator) Close() error {
	s.Disconnect()
	return nil
}
