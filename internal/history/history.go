// Package history provides SQLite-backed persistence for scan sessions
// and their detections, so results survive the process that produced
// them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osintlab/imagehound/internal/detect"
)

// DB stores scan sessions and detections in a single SQLite file.
//
// Design decision: One database file for all sessions rather than one
// per scan. Cross-session queries (stats, "what matched this target
// before") stay simple and backup is a single file copy.
type DB struct {
	db     *sql.DB
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when
	// absent.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Session is one recorded scan run.
type Session struct {
	// ID is the session's UUID.
	ID string

	// Kind labels what ran: "scan", "check", "stream-scan", "monitor".
	Kind string

	// Argument is what was scanned: a page URL, file path, or channel.
	Argument string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// MatchCount is the number of detections the session produced.
	MatchCount int
}

// Stats summarizes the whole database.
type Stats struct {
	Sessions   int
	Detections int
}

// Open opens or creates the history database under dir.
func Open(dir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dir, "history.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer; more connections only add lock
	// contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &DB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *DB) Close() error {
	return h.db.Close()
}

// Path returns the database file location.
func (h *DB) Path() string {
	return h.dbPath
}

func (h *DB) createTables() error {
	schema := `
	-- Sessions store one row per scan run
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		argument TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		match_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_kind ON sessions(kind);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Detections store the session's match records
	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		target_id TEXT NOT NULL,
		description TEXT,
		match_reasons TEXT NOT NULL,
		found_at TEXT,
		provenance TEXT,
		timestamp DATETIME NOT NULL,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_detections_session ON detections(session_id);
	CREATE INDEX IF NOT EXISTS idx_detections_target ON detections(target_id);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSession records a finished scan run and its detections atomically,
// returning the new session id.
func (h *DB) SaveSession(ctx context.Context, session Session, matches []detect.MatchRecord) (string, error) {
	id := uuid.NewString()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (id, kind, argument, started_at, finished_at, match_count)
	VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		session.Kind,
		session.Argument,
		session.StartedAt.UTC().Format(time.RFC3339),
		session.FinishedAt.UTC().Format(time.RFC3339),
		len(matches),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	for _, match := range matches {
		reasonsJSON, err := json.Marshal(match.MatchReasons)
		if err != nil {
			return "", fmt.Errorf("failed to serialize match reasons: %w", err)
		}
		recordJSON, err := json.Marshal(match)
		if err != nil {
			return "", fmt.Errorf("failed to serialize match record: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO detections (session_id, target_id, description, match_reasons, found_at, provenance, timestamp, record_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			match.TargetID,
			match.Description,
			string(reasonsJSON),
			match.FoundAt,
			match.Provenance,
			match.Timestamp.UTC().Format(time.RFC3339),
			string(recordJSON),
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

// ListSessions returns recent sessions, newest first. A non-positive
// limit returns them all.
func (h *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	query := `
	SELECT id, kind, argument, started_at, finished_at, match_count
	FROM sessions
	ORDER BY started_at DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started, finished string
		if err := rows.Scan(&s.ID, &s.Kind, &s.Argument, &started, &finished, &s.MatchCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionDetections returns the match records of one session in insertion
// order.
func (h *DB) SessionDetections(ctx context.Context, sessionID string) ([]detect.MatchRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT record_json FROM detections
	WHERE session_id = ?
	ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []detect.MatchRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		var rec detect.MatchRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			continue // skip malformed rows
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DetectionsForTarget returns every recorded detection of the target
// across all sessions, newest first.
func (h *DB) DetectionsForTarget(ctx context.Context, targetID string) ([]detect.MatchRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT record_json FROM detections
	WHERE target_id = ?
	ORDER BY timestamp DESC, id DESC`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []detect.MatchRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		var rec detect.MatchRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TotalStats returns database-wide counters.
func (h *DB) TotalStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&stats.Sessions); err != nil {
		return Stats{}, fmt.Errorf("failed to count sessions: %w", err)
	}
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM detections").Scan(&stats.Detections); err != nil {
		return Stats{}, fmt.Errorf("failed to count detections: %w", err)
	}
	return stats, nil
}

// timestampFormats lists the formats SQLite may hand back, most specific
// first.
var timestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format, returning zero time when none
// match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
