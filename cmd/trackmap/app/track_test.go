package app

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/storage"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

func testTrack() *TrackData {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	session := &storage.Session{
		ID:        1,
		RunID:     "run",
		StartTime: start,
		LinkType:  "sim",
		Target:    telemetry.Position{X: 0, Y: 100, Z: 10},
	}

	points := []*telemetry.Snapshot{
		{Timestamp: start.Add(2 * time.Second), X: 0, Y: 50, Z: telemetry.Float(10)},
		{Timestamp: start, X: 0, Y: 0, Z: telemetry.Float(0)},
		{Timestamp: start.Add(time.Second), X: -20, Y: 20},
	}

	reports := []*storage.ReportRecord{
		{Timestamp: start, Report: command.Report{Action: command.ChangeAltitude, Magnitude: 10}},
		{Timestamp: start, Report: command.Report{Action: command.ChangeYaw, Magnitude: 90}},
		{Timestamp: start, Report: command.Report{Action: command.ChangeYaw, Magnitude: -5}},
	}

	return NewTrackData(session, &storage.SessionStats{Snapshots: 3, Reports: 3}, points, reports)
}

func TestNewTrackData(t *testing.T) {
	d := testTrack()

	// track and target with 5% padding, at least one meter
	assert.InDelta(t, -21, d.MinX, 1e-9)
	assert.InDelta(t, 1, d.MaxX, 1e-9)
	assert.InDelta(t, -5, d.MinY, 1e-9)
	assert.InDelta(t, 105, d.MaxY, 1e-9)

	assert.True(t, d.HasAltitude)
	assert.Equal(t, 0.0, d.MinZ)
	assert.Equal(t, 10.0, d.MaxZ)

	assert.Equal(t, d.Session.StartTime, d.Start)
	assert.Equal(t, d.Session.StartTime.Add(2*time.Second), d.End)

	altitude, yaw := d.Commands()
	assert.Equal(t, 1, altitude)
	assert.Equal(t, 2, yaw)
}

func TestNewTrackData_NoAltitude(t *testing.T) {
	session := &storage.Session{ID: 1}
	d := NewTrackData(session, &storage.SessionStats{}, []*telemetry.Snapshot{{X: 3, Y: 4}}, nil)

	assert.False(t, d.HasAltitude)
	assert.Equal(t, 0.0, d.MinZ)
	assert.Equal(t, 0.0, d.MaxZ)
	assert.InDelta(t, -1, d.MinX, 1e-9)
	assert.InDelta(t, 4, d.MaxX, 1e-9)
}

func TestProjection(t *testing.T) {
	d := &TrackData{MinX: 0, MaxX: 10, MinY: 0, MaxY: 20}
	p := newProjection(image.Rect(10, 10, 110, 110), d)

	assert.InDelta(t, 5.0, p.scale, 1e-9)

	// the narrower axis is centred
	assert.Equal(t, image.Pt(35, 110), p.point(0, 0))
	assert.Equal(t, image.Pt(85, 10), p.point(10, 20))
	assert.Equal(t, image.Pt(60, 60), p.point(5, 10))

	assert.InDelta(t, -5, p.minX, 1e-9)
	assert.InDelta(t, 15, p.maxX(), 1e-9)
	assert.InDelta(t, 20, p.maxY(), 1e-9)
}

func TestAltitudeColor(t *testing.T) {
	assert.Equal(t, color.Color(noAltitudeColor), altitudeColor(nil, 0, 10))

	low, _ := colorful.MakeColor(altitudeColor(telemetry.Float(0), 0, 10))
	high, _ := colorful.MakeColor(altitudeColor(telemetry.Float(10), 0, 10))
	above, _ := colorful.MakeColor(altitudeColor(telemetry.Float(50), 0, 10))

	lowHue, _, _ := low.Hsv()
	highHue, _, _ := high.Hsv()
	aboveHue, _, _ := above.Hsv()

	assert.InDelta(t, hueStart, lowHue, 1)
	assert.InDelta(t, hueEnd, highHue, 1)
	assert.InDelta(t, highHue, aboveHue, 1e-9)

	// flat altitude profile
	flat, _ := colorful.MakeColor(altitudeColor(telemetry.Float(5), 5, 5))
	flatHue, _, _ := flat.Hsv()
	assert.InDelta(t, hueStart, flatHue, 1)
}

func TestCalculateNiceStep(t *testing.T) {
	assert.Equal(t, 20.0, calculateNiceStep(110, 800))
	assert.Equal(t, 10.0, calculateNiceStep(50, 800))
	assert.Equal(t, 500.0, calculateNiceStep(1500, 400))
}

func TestFormatMeters(t *testing.T) {
	assert.Equal(t, "0 m", formatMeters(0))
	assert.Equal(t, "0.25 m", formatMeters(0.25))
	assert.Equal(t, "-12.5 m", formatMeters(-12.5))
	assert.Equal(t, "1.50 km", formatMeters(1500))
}
