package storage

import (
	_ "embed"
)

var (
	//go:embed schema.sql
	initSchemaSQL string

	//go:embed indexes.sql
	initIndexesSQL string
)

const (
	insertSessionSQL = `
INSERT INTO sessions (run_id,
                      start_time,
                      link_type,
                      target_x,
                      target_y,
                      target_z,
                      config)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	updateSessionEndSQL = `
UPDATE sessions
SET end_time = ?
WHERE id = ?`

	selectSessionSQL = `
SELECT id,
       run_id,
       start_time,
       end_time,
       link_type,
       target_x,
       target_y,
       target_z,
       config
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id,
       run_id,
       start_time,
       end_time,
       link_type,
       target_x,
       target_y,
       target_z,
       config
FROM sessions
ORDER BY start_time, id`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       x,
                       y,
                       z,
                       vx,
                       vy,
                       vz,
                       yaw)
VALUES `

	selectTrackSQL = `
SELECT id,
       session_id,
       timestamp,
       x,
       y,
       z,
       vx,
       vy,
       vz,
       yaw
FROM telemetry
WHERE session_id = ?
ORDER BY timestamp, id`

	insertReportSQL = `
INSERT INTO reports (session_id,
                     timestamp,
                     action,
                     magnitude)
VALUES (?, ?, ?, ?)`

	selectReportsSQL = `
SELECT id,
       session_id,
       timestamp,
       action,
       magnitude
FROM reports
WHERE session_id = ?
ORDER BY timestamp, id`

	countsSQL = `
SELECT (SELECT COUNT(*) FROM telemetry WHERE session_id = ?),
       (SELECT COUNT(*) FROM reports WHERE session_id = ?)`
)
