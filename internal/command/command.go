// Package command turns telemetry snapshots into navigation commands that
// steer the vehicle toward a fixed target.
//
// Altitude is corrected first. The heading is only corrected once the vehicle
// is within the height tolerance of the target, or its altitude is unknown.
// At most one command is sent per snapshot.
package command

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

const (
	DefaultHeightTolerance = 0.5               // meters
	DefaultAngleTolerance  = 5 * math.Pi / 180 // radians
	DefaultClimbRate       = 1.0               // m/s
	DefaultYawRate         = 5.0               // deg/s
)

// ErrInvalidConfig is returned by New when the commander cannot be built
var ErrInvalidConfig = errors.New("invalid commander configuration")

// Sender sends navigation commands to the vehicle
type Sender interface {
	SendAltitudeCommand(targetZ, rate float64) error
	SendYawCommand(deltaDegrees, rateDegS float64, direction int, relative bool) error
}

// Action is the kind of navigation command sent
type Action int

const (
	ChangeAltitude Action = iota + 1
	ChangeYaw
)

func (a Action) String() string {
	switch a {
	case ChangeAltitude:
		return "CHANGE ALTITUDE"
	case ChangeYaw:
		return "CHANGE YAW"
	default:
		return "UNKNOWN"
	}
}

// Label returns the short lowercase name used in metrics and storage
func (a Action) Label() string {
	switch a {
	case ChangeAltitude:
		return "altitude"
	case ChangeYaw:
		return "yaw"
	default:
		return "unknown"
	}
}

// ParseAction is the inverse of Action.Label
func ParseAction(label string) (Action, error) {
	switch label {
	case "altitude":
		return ChangeAltitude, nil
	case "yaw":
		return ChangeYaw, nil
	default:
		return 0, fmt.Errorf("unknown action %q", label)
	}
}

// Report describes a command that was sent. Magnitude is the altitude
// difference in meters for ChangeAltitude and the heading difference in
// degrees for ChangeYaw.
type Report struct {
	Action    Action  `json:"action"`
	Magnitude float64 `json:"magnitude"`
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %.2f", r.Action, r.Magnitude)
}

// SendError is returned by Process when the chosen command could not be sent
type SendError struct {
	Action Action
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending %s command: %s", strings.ToLower(e.Action.String()), e.Err.Error())
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// WithLogger sets the logger for the commander
func WithLogger(logger *slog.Logger) func(c *Commander) {
	return func(c *Commander) {
		c.logger = logger
	}
}

// WithHeightTolerance sets the altitude error in meters below which no
// altitude command is sent
func WithHeightTolerance(meters float64) func(c *Commander) {
	return func(c *Commander) {
		c.heightTolerance = meters
	}
}

// WithAngleTolerance sets the heading error in radians below which no yaw
// command is sent
func WithAngleTolerance(radians float64) func(c *Commander) {
	return func(c *Commander) {
		c.angleTolerance = radians
	}
}

// WithClimbRate sets the vertical rate in m/s requested by altitude commands
func WithClimbRate(rate float64) func(c *Commander) {
	return func(c *Commander) {
		c.climbRate = rate
	}
}

// WithYawRate sets the angular rate in deg/s requested by yaw commands
func WithYawRate(rate float64) func(c *Commander) {
	return func(c *Commander) {
		c.yawRate = rate
	}
}

// Commander decides which command, if any, to send for each snapshot
type Commander struct {
	sender Sender
	target telemetry.Position

	heightTolerance float64
	angleTolerance  float64
	climbRate       float64
	yawRate         float64

	// every velocity observed since the commander was created
	vx, vy, vz []float64

	logger *slog.Logger
}

// New returns a commander steering toward target through sender
func New(sender Sender, target telemetry.Position, options ...func(c *Commander)) (*Commander, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Commander{
		sender:          sender,
		target:          target,
		heightTolerance: DefaultHeightTolerance,
		angleTolerance:  DefaultAngleTolerance,
		climbRate:       DefaultClimbRate,
		yawRate:         DefaultYawRate,
		logger:          logger,
	}

	for _, option := range options {
		option(&c)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Commander) validate() error {
	if c.sender == nil {
		return fmt.Errorf("%w: command sender is required", ErrInvalidConfig)
	}

	for name, v := range map[string]float64{"x": c.target.X, "y": c.target.Y, "z": c.target.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: target %s must be a finite number", ErrInvalidConfig, name)
		}
	}

	if !(c.heightTolerance >= 0) {
		return fmt.Errorf("%w: height tolerance must not be negative", ErrInvalidConfig)
	}
	if !(c.angleTolerance >= 0 && c.angleTolerance < math.Pi) {
		return fmt.Errorf("%w: angle tolerance must be within [0, π)", ErrInvalidConfig)
	}
	if !(c.climbRate > 0) {
		return fmt.Errorf("%w: climb rate must be positive", ErrInvalidConfig)
	}
	if !(c.yawRate > 0) {
		return fmt.Errorf("%w: yaw rate must be positive", ErrInvalidConfig)
	}

	return nil
}

// Target returns the position the commander steers toward
func (c *Commander) Target() telemetry.Position {
	return c.target
}

// Process records the snapshot velocity and sends at most one command. It
// returns a report of the command sent, or nil when the vehicle is within
// tolerance or its state is unknown. A nil snapshot is ignored. A send
// failure is returned without a report.
func (c *Commander) Process(s *telemetry.Snapshot) (*Report, error) {
	if s == nil {
		return nil, nil
	}

	c.recordVelocity(s)

	vx, vy, vz := c.AverageVelocity()
	c.logger.Info("average velocity",
		slog.Float64("vx", vx),
		slog.Float64("vy", vy),
		slog.Float64("vz", vz),
	)

	if s.HasAltitude() {
		diff := c.target.Z - *s.Z
		if math.Abs(diff) > c.heightTolerance {
			if err := c.sender.SendAltitudeCommand(c.target.Z, c.climbRate); err != nil {
				return nil, &SendError{Action: ChangeAltitude, Err: err}
			}
			return &Report{Action: ChangeAltitude, Magnitude: diff}, nil
		}
	}

	if !s.HasYaw() {
		return nil, nil
	}

	required := math.Atan2(c.target.Y-s.Y, c.target.X-s.X)
	diff := NormalizeAngle(required - *s.Yaw)
	// NaN never exceeds the tolerance
	if !(math.Abs(diff) > c.angleTolerance) {
		return nil, nil
	}

	// the vehicle expects the opposite sign of the heading error
	direction := 1
	if diff > 0 {
		direction = -1
	}

	degrees := Degrees(diff)
	if err := c.sender.SendYawCommand(degrees, c.yawRate, direction, true); err != nil {
		return nil, &SendError{Action: ChangeYaw, Err: err}
	}
	return &Report{Action: ChangeYaw, Magnitude: degrees}, nil
}

func (c *Commander) recordVelocity(s *telemetry.Snapshot) {
	c.vx = append(c.vx, s.VX)
	c.vy = append(c.vy, s.VY)
	c.vz = append(c.vz, s.VZ)
}

// AverageVelocity returns the mean of every velocity processed so far
func (c *Commander) AverageVelocity() (vx, vy, vz float64) {
	if len(c.vx) == 0 {
		return 0, 0, 0
	}
	return stat.Mean(c.vx, nil), stat.Mean(c.vy, nil), stat.Mean(c.vz, nil)
}

// NormalizeAngle maps an angle in radians into (-π, π]
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	switch {
	case a <= -math.Pi:
		a += 2 * math.Pi
	case a > math.Pi:
		a -= 2 * math.Pi
	}
	return a
}

// Degrees converts radians to degrees
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
