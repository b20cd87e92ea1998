package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// maxRowsPerInsert keeps batch inserts below the SQLite bound variables limit
const maxRowsPerInsert = 500

// ErrSessionNotFound is returned when a session does not exist
var ErrSessionNotFound = errors.New("session not found")

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened lazily, the schema is created on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // sqlite allows a single writer

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, runID, linkType string, target telemetry.Position, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, runID, time.Now().UTC(), linkType, target.X, target.Y, target.Z, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) EndSession(ctx context.Context, sessionID int64, end time.Time) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, updateSessionEndSQL, end.UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
	}
	return nil
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	sess, err := scanSession(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %d", ErrSessionNotFound, id)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return sess.session(), nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *sessionData
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess.session())
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating sessions: %w", err)
	}
	return
}

func scanSession(row interface{ Scan(...any) error }) (*sessionData, error) {
	var sess sessionData
	err := row.Scan(
		&sess.ID,
		&sess.RunID,
		&sess.StartTime,
		&sess.EndTime,
		&sess.LinkType,
		&sess.TargetX,
		&sess.TargetY,
		&sess.TargetZ,
		&sess.Config,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SqliteStore) StoreTelemetry(ctx context.Context, sessionID int64, snapshots []*telemetry.Snapshot) (err error) {
	if len(snapshots) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	const valuesPlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"

	for chunk := range slices.Chunk(snapshots, maxRowsPerInsert) {
		values := make([]any, 0, len(chunk)*9)

		var sb strings.Builder
		sb.WriteString(insertTelemetrySQL)

		for i, snapshot := range chunk {
			data := toTelemetryData(sessionID, snapshot)
			values = append(values,
				data.SessionID,
				data.Timestamp,
				data.X,
				data.Y,
				data.Z,
				data.VX,
				data.VY,
				data.VZ,
				data.Yaw,
			)

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(valuesPlaceholder)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting telemetry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) StoreReport(ctx context.Context, sessionID int64, ts time.Time, report command.Report) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, insertReportSQL, sessionID, ts.UTC(), report.Action.Label(), report.Magnitude); err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

func (s *SqliteStore) Track(ctx context.Context, sessionID int64) (track []*telemetry.Snapshot, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTrackSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying telemetry: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var t telemetryData
		if err = rows.Scan(&t.ID, &t.SessionID, &t.Timestamp, &t.X, &t.Y, &t.Z, &t.VX, &t.VY, &t.VZ, &t.Yaw); err != nil {
			err = fmt.Errorf("scanning telemetry: %w", err)
			return
		}
		track = append(track, t.snapshot())
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating telemetry: %w", err)
	}
	return
}

func (s *SqliteStore) Reports(ctx context.Context, sessionID int64) (reports []*ReportRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectReportsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying reports: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r reportData
		if err = rows.Scan(&r.ID, &r.SessionID, &r.Timestamp, &r.Action, &r.Magnitude); err != nil {
			err = fmt.Errorf("scanning report: %w", err)
			return
		}

		var rec *ReportRecord
		if rec, err = r.record(); err != nil {
			return
		}
		reports = append(reports, rec)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating reports: %w", err)
	}
	return
}

func (s *SqliteStore) Stats(ctx context.Context, sessionID int64) (*SessionStats, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var stats SessionStats
	if err = db.QueryRowContext(ctx, countsSQL, sessionID, sessionID).Scan(&stats.Snapshots, &stats.Reports); err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	return &stats, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
