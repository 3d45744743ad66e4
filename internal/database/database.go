package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Database handles SQLite storage for session lifecycle events and
// small pieces of application configuration. Frame payloads are never
// persisted.
type Database struct {
	db *sql.DB
}

// SessionEventRecord is one connect or disconnect event.
type SessionEventRecord struct {
	ID            string
	SessionID     string
	RemoteAddr    string
	Event         string // "connected" or "disconnected"
	FramesSent    uint64
	BytesSent     uint64
	FramesDropped uint64
	Timestamp     time.Time
}

// ConfigRecord is a configuration key-value pair.
type ConfigRecord struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// New opens (or creates) the database at path. Use ":memory:" for an
// ephemeral store.
func New(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps event writes from stalling concurrent readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate creates the schema.
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			remote_addr TEXT,
			event TEXT NOT NULL,
			frames_sent INTEGER DEFAULT 0,
			bytes_sent INTEGER DEFAULT 0,
			frames_dropped INTEGER DEFAULT 0,
			timestamp DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_time ON session_events(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// RecordConnect stores a session connect event.
func (d *Database) RecordConnect(sessionID, remoteAddr string) error {
	_, err := d.db.Exec(
		`INSERT INTO session_events (id, session_id, remote_addr, event, timestamp)
		 VALUES (?, ?, ?, 'connected', ?)`,
		uuid.NewString(), sessionID, remoteAddr, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record connect: %w", err)
	}
	return nil
}

// RecordDisconnect stores a session disconnect event with its final
// delivery counters.
func (d *Database) RecordDisconnect(sessionID string, framesSent, bytesSent, framesDropped uint64) error {
	_, err := d.db.Exec(
		`INSERT INTO session_events (id, session_id, event, frames_sent, bytes_sent, frames_dropped, timestamp)
		 VALUES (?, ?, 'disconnected', ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, framesSent, bytesSent, framesDropped, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record disconnect: %w", err)
	}
	return nil
}

// ListSessionEvents returns the most recent events, newest first.
func (d *Database) ListSessionEvents(limit int) ([]SessionEventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.Query(
		`SELECT id, session_id, COALESCE(remote_addr, ''), event, frames_sent, bytes_sent, frames_dropped, timestamp
		 FROM session_events ORDER BY timestamp DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	defer rows.Close()

	var events []SessionEventRecord
	for rows.Next() {
		var rec SessionEventRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.RemoteAddr, &rec.Event,
			&rec.FramesSent, &rec.BytesSent, &rec.FramesDropped, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}

// GetConfig returns the value for key, or "" when unset.
func (d *Database) GetConfig(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

// SetConfig upserts a configuration value.
func (d *Database) SetConfig(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}
