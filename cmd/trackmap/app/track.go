package app

import (
	"math"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/storage"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

const (
	trackPadding = 0.05 // fraction of the track span added around it
	minPadding   = 1.0  // meters
)

// TrackData is a flight session prepared for rendering
type TrackData struct {
	Session *storage.Session
	Stats   *storage.SessionStats
	Points  []*telemetry.Snapshot
	Reports []*storage.ReportRecord

	// horizontal bounds in meters, covering the track and the target
	MinX, MaxX float64
	MinY, MaxY float64

	// altitude range of the points with a known altitude
	MinZ, MaxZ  float64
	HasAltitude bool

	Start, End time.Time
}

func NewTrackData(session *storage.Session, stats *storage.SessionStats, points []*telemetry.Snapshot, reports []*storage.ReportRecord) *TrackData {
	d := TrackData{
		Session: session,
		Stats:   stats,
		Points:  points,
		Reports: reports,
		MinX:    session.Target.X,
		MaxX:    session.Target.X,
		MinY:    session.Target.Y,
		MaxY:    session.Target.Y,
		MinZ:    math.MaxFloat64,
		MaxZ:    -math.MaxFloat64,
	}

	for _, p := range points {
		d.MinX = min(d.MinX, p.X)
		d.MaxX = max(d.MaxX, p.X)
		d.MinY = min(d.MinY, p.Y)
		d.MaxY = max(d.MaxY, p.Y)

		if p.HasAltitude() {
			d.HasAltitude = true
			d.MinZ = min(d.MinZ, *p.Z)
			d.MaxZ = max(d.MaxZ, *p.Z)
		}

		if d.Start.IsZero() || d.Start.After(p.Timestamp) {
			d.Start = p.Timestamp
		}
		if d.End.IsZero() || d.End.Before(p.Timestamp) {
			d.End = p.Timestamp
		}
	}

	if !d.HasAltitude {
		d.MinZ, d.MaxZ = 0, 0
	}

	padX := max((d.MaxX-d.MinX)*trackPadding, minPadding)
	padY := max((d.MaxY-d.MinY)*trackPadding, minPadding)
	d.MinX -= padX
	d.MaxX += padX
	d.MinY -= padY
	d.MaxY += padY

	return &d
}

// Commands counts the reports by action
func (d *TrackData) Commands() (altitude, yaw int) {
	for _, r := range d.Reports {
		switch r.Action {
		case command.ChangeAltitude:
			altitude++
		case command.ChangeYaw:
			yaw++
		}
	}
	return
}
