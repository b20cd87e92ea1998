package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toTelemetryData(sessionID int64, s *telemetry.Snapshot) *telemetryData {
	return &telemetryData{
		SessionID: sessionID,
		Timestamp: s.Timestamp.UTC(),
		X:         s.X,
		Y:         s.Y,
		Z:         toNullFloat(s.Z),
		VX:        s.VX,
		VY:        s.VY,
		VZ:        s.VZ,
		Yaw:       toNullFloat(s.Yaw),
	}
}

func (t *telemetryData) snapshot() *telemetry.Snapshot {
	return &telemetry.Snapshot{
		Timestamp: t.Timestamp.UTC(),
		X:         t.X,
		Y:         t.Y,
		Z:         fromNullFloat(t.Z),
		VX:        t.VX,
		VY:        t.VY,
		VZ:        t.VZ,
		Yaw:       fromNullFloat(t.Yaw),
	}
}

func (r *reportData) record() (*ReportRecord, error) {
	action, err := command.ParseAction(r.Action)
	if err != nil {
		return nil, fmt.Errorf("report %d: %w", r.ID, err)
	}

	return &ReportRecord{
		Timestamp: r.Timestamp.UTC(),
		Report: command.Report{
			Action:    action,
			Magnitude: r.Magnitude,
		},
	}, nil
}

func (s *sessionData) session() *Session {
	sess := Session{
		ID:        s.ID,
		RunID:     s.RunID,
		StartTime: s.StartTime.UTC(),
		LinkType:  s.LinkType,
		Target: telemetry.Position{
			X: s.TargetX,
			Y: s.TargetY,
			Z: s.TargetZ,
		},
	}
	if s.EndTime.Valid {
		end := s.EndTime.Time.UTC()
		sess.EndTime = &end
	}
	if s.Config.Valid {
		sess.Config = &s.Config.String
	}
	return &sess
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return telemetry.Float(f.Float64)
}
