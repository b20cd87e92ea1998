package link

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// Frame tags, the first field of every line on the wire
const (
	FrameTelemetry = "TLM"
	FrameCommand   = "CMD"
	FrameHeartbeat = "HB"
)

const (
	// TargetSystem and TargetComponent address the vehicle autopilot
	TargetSystem    uint8 = 1
	TargetComponent uint8 = 0

	CmdConditionChangeAlt uint16 = 113 // climb/descend to an altitude
	CmdConditionYaw       uint16 = 115 // change heading

	TypeGCS          uint8 = 6 // ground control station
	AutopilotInvalid uint8 = 8 // sender is not an autopilot
	StateActive      uint8 = 4
)

const (
	telemetryFields = 9
	commandFields   = 12
	heartbeatFields = 6
)

// CommandLong is a fixed-field command message with seven float parameters.
// The meaning of each parameter depends on Command.
type CommandLong struct {
	TargetSystem    uint8
	TargetComponent uint8
	Command         uint16
	Confirmation    uint8
	Params          [7]float64
}

// NewAltitudeCommand builds a command asking the vehicle to move to targetZ at
// rate m/s. Param 1 is the rate, param 7 the target altitude.
func NewAltitudeCommand(targetZ, rate float64) CommandLong {
	c := CommandLong{
		TargetSystem:    TargetSystem,
		TargetComponent: TargetComponent,
		Command:         CmdConditionChangeAlt,
	}
	c.Params[0] = rate
	c.Params[6] = targetZ
	return c
}

// NewYawCommand builds a heading change command. Param 1 is the angle in
// degrees, param 2 the angular rate in deg/s, param 3 the direction and
// param 4 is 1 for a relative change, 0 for an absolute heading.
func NewYawCommand(deltaDegrees, rateDegS float64, direction int, relative bool) CommandLong {
	c := CommandLong{
		TargetSystem:    TargetSystem,
		TargetComponent: TargetComponent,
		Command:         CmdConditionYaw,
	}
	c.Params[0] = deltaDegrees
	c.Params[1] = rateDegS
	c.Params[2] = float64(direction)
	if relative {
		c.Params[3] = 1
	}
	return c
}

// Encode returns the wire representation of the command, without the newline
func (c CommandLong) Encode() string {
	fields := make([]string, 0, commandFields)
	fields = append(fields,
		FrameCommand,
		strconv.FormatUint(uint64(c.TargetSystem), 10),
		strconv.FormatUint(uint64(c.TargetComponent), 10),
		strconv.FormatUint(uint64(c.Command), 10),
		strconv.FormatUint(uint64(c.Confirmation), 10),
	)
	for _, p := range c.Params {
		fields = append(fields, formatFloat(p))
	}
	return strings.Join(fields, ",")
}

// ParseCommandLong decodes a command frame
func ParseCommandLong(line string) (CommandLong, error) {
	var c CommandLong

	fields, err := splitFrame(line, FrameCommand, commandFields)
	if err != nil {
		return c, err
	}

	ints := make([]uint64, 4)
	for i, bits := range []int{8, 8, 16, 8} {
		if ints[i], err = strconv.ParseUint(fields[i+1], 10, bits); err != nil {
			return c, fmt.Errorf("%w: invalid header field %d: %w", ErrMalformedFrame, i+1, err)
		}
	}
	c.TargetSystem = uint8(ints[0])
	c.TargetComponent = uint8(ints[1])
	c.Command = uint16(ints[2])
	c.Confirmation = uint8(ints[3])

	for i := range c.Params {
		if c.Params[i], err = strconv.ParseFloat(fields[i+5], 64); err != nil {
			return c, fmt.Errorf("%w: invalid param %d: %w", ErrMalformedFrame, i+1, err)
		}
	}

	return c, nil
}

// Heartbeat is the liveness message sent to the vehicle
type Heartbeat struct {
	Type         uint8
	Autopilot    uint8
	BaseMode     uint8
	CustomMode   uint32
	SystemStatus uint8
}

// GCSHeartbeat returns the heartbeat sent by the navigator
func GCSHeartbeat() Heartbeat {
	return Heartbeat{
		Type:         TypeGCS,
		Autopilot:    AutopilotInvalid,
		SystemStatus: StateActive,
	}
}

// Encode returns the wire representation of the heartbeat, without the newline
func (h Heartbeat) Encode() string {
	return fmt.Sprintf("%s,%d,%d,%d,%d,%d", FrameHeartbeat, h.Type, h.Autopilot, h.BaseMode, h.CustomMode, h.SystemStatus)
}

// ParseHeartbeat decodes a heartbeat frame
func ParseHeartbeat(line string) (Heartbeat, error) {
	var h Heartbeat

	fields, err := splitFrame(line, FrameHeartbeat, heartbeatFields)
	if err != nil {
		return h, err
	}

	values := make([]uint64, 5)
	for i, bits := range []int{8, 8, 8, 32, 8} {
		if values[i], err = strconv.ParseUint(fields[i+1], 10, bits); err != nil {
			return h, fmt.Errorf("%w: invalid heartbeat field %d: %w", ErrMalformedFrame, i+1, err)
		}
	}

	h.Type = uint8(values[0])
	h.Autopilot = uint8(values[1])
	h.BaseMode = uint8(values[2])
	h.CustomMode = uint32(values[3])
	h.SystemStatus = uint8(values[4])
	return h, nil
}

// EncodeTelemetry returns the wire representation of a snapshot. Unknown
// altitude or yaw are encoded as empty fields.
func EncodeTelemetry(s *telemetry.Snapshot) string {
	return strings.Join([]string{
		FrameTelemetry,
		strconv.FormatInt(s.Timestamp.UnixMilli(), 10),
		formatFloat(s.X),
		formatFloat(s.Y),
		formatOptionalFloat(s.Z),
		formatFloat(s.VX),
		formatFloat(s.VY),
		formatFloat(s.VZ),
		formatOptionalFloat(s.Yaw),
	}, ",")
}

// ParseTelemetry decodes a telemetry frame
func ParseTelemetry(line string) (*telemetry.Snapshot, error) {
	fields, err := splitFrame(line, FrameTelemetry, telemetryFields)
	if err != nil {
		return nil, err
	}

	ms, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp: %w", ErrMalformedFrame, err)
	}

	s := telemetry.Snapshot{Timestamp: time.UnixMilli(ms).UTC()}

	required := []struct {
		name  string
		index int
		dst   *float64
	}{
		{"x", 2, &s.X},
		{"y", 3, &s.Y},
		{"vx", 5, &s.VX},
		{"vy", 6, &s.VY},
		{"vz", 7, &s.VZ},
	}
	for _, f := range required {
		if *f.dst, err = parseFloat(fields[f.index]); err != nil {
			return nil, fmt.Errorf("%w: invalid %s: %w", ErrMalformedFrame, f.name, err)
		}
	}

	if s.Z, err = parseOptionalFloat(fields[4]); err != nil {
		return nil, fmt.Errorf("%w: invalid z: %w", ErrMalformedFrame, err)
	}
	if s.Yaw, err = parseOptionalFloat(fields[8]); err != nil {
		return nil, fmt.Errorf("%w: invalid yaw: %w", ErrMalformedFrame, err)
	}

	return &s, nil
}

// FrameTag returns the tag of a wire frame, the text up to the first comma
func FrameTag(line string) string {
	tag, _, _ := strings.Cut(line, ",")
	return strings.TrimSpace(tag)
}

func splitFrame(line, tag string, numFields int) ([]string, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != numFields {
		return nil, fmt.Errorf("%w: %s frame: expected %d fields, got %d", ErrMalformedFrame, tag, numFields, len(fields))
	}
	if fields[0] != tag {
		return nil, fmt.Errorf("%w: expected %s frame, got %q", ErrMalformedFrame, tag, fields[0])
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseFloat(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseFloat rejects NaN and infinities, a vehicle never reports them
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
