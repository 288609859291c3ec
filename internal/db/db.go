// Package db persists the frame index: which frames were saved where, and
// periodic throughput samples for reporting.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/polarisvision/camlink/internal/camera"
)

// DB wraps the sqlite handle with the camlink schema.
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the sqlite database at path and ensures
// the base schema. Use ":memory:" for tests.
func New(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_, err = sqldb.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id       TEXT PRIMARY KEY,
			server_addr      TEXT,
			started_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at         TIMESTAMP,
			frames_received  BIGINT DEFAULT 0,
			bytes_received   BIGINT DEFAULT 0,
			avg_fps          DOUBLE DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS frames (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id       TEXT,
			frame_id         BIGINT,
			width            BIGINT,
			height           BIGINT,
			timestamp_ns     BIGINT,
			raw_path         TEXT,
			unpacked_path    TEXT,
			raw_bytes        BIGINT,
			saved_at         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE TABLE IF NOT EXISTS session_samples (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id       TEXT,
			frames_received  BIGINT,
			bytes_received   BIGINT,
			avg_fps          DOUBLE,
			sampled_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_frames_session ON frames(session_id, frame_id);
		CREATE INDEX IF NOT EXISTS idx_samples_session ON session_samples(session_id, sampled_at);
	`)
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{sqldb}, nil
}

// StartSession records a new receive session.
func (db *DB) StartSession(sessionID, serverAddr string) error {
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, server_addr) VALUES (?, ?)`,
		sessionID, serverAddr,
	)
	if err != nil {
		return fmt.Errorf("start session %s: %w", sessionID, err)
	}
	return nil
}

// FinishSession stamps the session's end and final counters.
func (db *DB) FinishSession(sessionID string, s camera.Stats) error {
	_, err := db.Exec(
		`UPDATE sessions
		 SET ended_at = CURRENT_TIMESTAMP, frames_received = ?, bytes_received = ?, avg_fps = ?
		 WHERE session_id = ?`,
		s.FramesReceived, s.BytesReceived, s.AvgFPS, sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", sessionID, err)
	}
	return nil
}

// RecordFrame indexes one persisted frame. Satisfies camera.FrameStore.
func (db *DB) RecordFrame(rec camera.SavedFrame) error {
	_, err := db.Exec(
		`INSERT INTO frames (session_id, frame_id, width, height, timestamp_ns, raw_path, unpacked_path, raw_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.FrameID, rec.Width, rec.Height,
		int64(rec.Timestamp), rec.RawPath, rec.UnpackedPath, rec.RawBytes,
	)
	if err != nil {
		return fmt.Errorf("record frame %d: %w", rec.FrameID, err)
	}
	return nil
}

// RecordSample stores one periodic throughput sample.
func (db *DB) RecordSample(sessionID string, s camera.Stats) error {
	_, err := db.Exec(
		`INSERT INTO session_samples (session_id, frames_received, bytes_received, avg_fps)
		 VALUES (?, ?, ?, ?)`,
		sessionID, s.FramesReceived, s.BytesReceived, s.AvgFPS,
	)
	if err != nil {
		return fmt.Errorf("record sample: %w", err)
	}
	return nil
}

// FrameRow is one row of the frame index.
type FrameRow struct {
	SessionID    string  `json:"session_id"`
	FrameID      int64   `json:"frame_id"`
	Width        int64   `json:"width"`
	Height       int64   `json:"height"`
	TimestampNs  int64   `json:"timestamp_ns"`
	RawPath      string  `json:"raw_path"`
	UnpackedPath *string `json:"unpacked_path,omitempty"`
	RawBytes     int64   `json:"raw_bytes"`
	SavedAt      string  `json:"saved_at"`
}

// RecentFrames returns the most recently indexed frames, newest first.
func (db *DB) RecentFrames(limit int) ([]FrameRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT session_id, frame_id, width, height, timestamp_ns, raw_path, unpacked_path, raw_bytes, saved_at
		 FROM frames ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRow
	for rows.Next() {
		var r FrameRow
		var unpacked sql.NullString
		if err := rows.Scan(&r.SessionID, &r.FrameID, &r.Width, &r.Height,
			&r.TimestampNs, &r.RawPath, &unpacked, &r.RawBytes, &r.SavedAt); err != nil {
			return nil, fmt.Errorf("scan frame row: %w", err)
		}
		if unpacked.Valid && unpacked.String != "" {
			r.UnpackedPath = &unpacked.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sample is one throughput observation used by charts and reports.
type Sample struct {
	SessionID      string    `json:"session_id"`
	FramesReceived int64     `json:"frames_received"`
	BytesReceived  int64     `json:"bytes_received"`
	AvgFPS         float64   `json:"avg_fps"`
	SampledAt      time.Time `json:"sampled_at"`
}

// Samples returns throughput samples for a session in chronological order.
// An empty sessionID selects the most recent session.
func (db *DB) Samples(sessionID string, limit int) ([]Sample, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	if sessionID == "" {
		row := db.QueryRow(`SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT 1`)
		if err := row.Scan(&sessionID); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, fmt.Errorf("latest session: %w", err)
		}
	}
	rows, err := db.Query(
		`SELECT session_id, frames_received, bytes_received, avg_fps, sampled_at
		 FROM session_samples WHERE session_id = ?
		 ORDER BY sampled_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.SessionID, &s.FramesReceived, &s.BytesReceived, &s.AvgFPS, &s.SampledAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
