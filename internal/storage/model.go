package storage

import (
	"time"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// Session is a single navigator run
type Session struct {
	ID        int64              `json:"id"`
	RunID     string             `json:"run_id"`
	StartTime time.Time          `json:"start_time"`
	EndTime   *time.Time         `json:"end_time,omitempty"` // nil while the run is in progress
	LinkType  string             `json:"link_type"`
	Target    telemetry.Position `json:"target"`
	Config    *string            `json:"config,omitempty"`
}

// Duration returns the length of the run, zero if it has not ended
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// ReportRecord is an action report as stored in the flight log
type ReportRecord struct {
	Timestamp time.Time `json:"timestamp"`
	command.Report
}

// SessionStats holds the number of records logged for a session
type SessionStats struct {
	Snapshots int64 `json:"snapshots"`
	Reports   int64 `json:"reports"`
}
