package storage

import (
	"database/sql"
	"time"
)

type sessionData struct {
	ID        int64
	RunID     string
	StartTime time.Time
	EndTime   sql.NullTime
	LinkType  string
	TargetX   float64
	TargetY   float64
	TargetZ   float64
	Config    sql.NullString
}

type telemetryData struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	X         float64
	Y         float64
	Z         sql.NullFloat64
	VX        float64
	VY        float64
	VZ        float64
	Yaw       sql.NullFloat64
}

type reportData struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	Action    string
	Magnitude float64
}
