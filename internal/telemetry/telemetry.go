package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Reader reads one telemetry snapshot from the vehicle
type Reader interface {
	ReadTelemetry(ctx context.Context) (*Snapshot, error)
}

// Position is a point in the shared local navigation frame, in meters
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// Snapshot is a single point-in-time telemetry reading from the vehicle
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`     // Timestamp of telemetry measurement
	X         float64   `json:"x"`             // Local X position in meters
	Y         float64   `json:"y"`             // Local Y position in meters
	Z         *float64  `json:"z,omitempty"`   // Local Z position (altitude) in meters, nil if unknown
	VX        float64   `json:"vx"`            // X velocity in m/s
	VY        float64   `json:"vy"`            // Y velocity in m/s
	VZ        float64   `json:"vz"`            // Z velocity in m/s
	Yaw       *float64  `json:"yaw,omitempty"` // Heading in radians, counter-clockwise positive, nil if unknown
}

// HasAltitude returns true if the snapshot carries a known Z position
func (s *Snapshot) HasAltitude() bool {
	return s.Z != nil
}

// HasYaw returns true if the snapshot carries a known heading
func (s *Snapshot) HasYaw() bool {
	return s.Yaw != nil
}

func (s *Snapshot) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("position=(%.2f, %.2f, %s)", s.X, s.Y, formatOptional(s.Z)))
	sb.WriteString(fmt.Sprintf(" velocity=(%.2f, %.2f, %.2f)", s.VX, s.VY, s.VZ))
	sb.WriteString(" yaw=" + formatOptional(s.Yaw))

	return sb.String()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Float returns a pointer to v, convenient for populating optional fields
func Float(v float64) *float64 {
	return &v
}
