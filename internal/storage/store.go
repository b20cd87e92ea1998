// Package storage implements the flight log: a record of every navigator run
// with the telemetry it observed and the commands it sent.
package storage

import (
	"context"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// Store provides an interface for managing the flight log. Writes are only
// performed by the orchestrator, never by the pipeline workers.
type Store interface {
	// CreateSession starts a new run and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - runID: Globally unique run identifier
	//   - linkType: Kind of vehicle link used (e.g., "serial", "sim")
	//   - target: Navigation target of the run
	//   - config: Optional run configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, runID, linkType string, target telemetry.Position, config any) (sessionID int64, err error)

	// EndSession records the time a run finished
	EndSession(ctx context.Context, sessionID int64, end time.Time) error

	// Session retrieves a run by its ID
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all runs ordered by start time
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreTelemetry saves a batch of snapshots in a single transaction
	StoreTelemetry(ctx context.Context, sessionID int64, snapshots []*telemetry.Snapshot) error

	// StoreReport saves an action report
	StoreReport(ctx context.Context, sessionID int64, ts time.Time, report command.Report) error

	// Track returns the snapshots of a run in time order
	Track(ctx context.Context, sessionID int64) ([]*telemetry.Snapshot, error)

	// Reports returns the action reports of a run in time order
	Reports(ctx context.Context, sessionID int64) ([]*ReportRecord, error)

	// Stats returns the number of snapshots and reports logged for a run
	Stats(ctx context.Context, sessionID int64) (*SessionStats, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
