package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/skilletlabs/skillet/pkg/apperr"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	input      TEXT NOT NULL,
	output     TEXT NOT NULL,
	ts         TEXT NOT NULL,
	PRIMARY KEY (session_id, seq)
);

CREATE TABLE IF NOT EXISTS deleted_sessions (
	id         TEXT PRIMARY KEY,
	deleted_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS captures (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	data        TEXT NOT NULL,
	metadata    TEXT,
	captured_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_kind ON captures(kind, captured_at);
`

// SQLiteStore persists sessions and captures in a SQLite database. The
// same-id update serialization required by the Store contract comes from
// SQLite's single-writer transactions.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and prepares
// the schema.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute %s", pragma)
		}
	}

	// busy_timeout and foreign_keys are per-connection settings; a
	// single pooled connection keeps them in force for every query.
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return &SQLiteStore{db: db}, nil
}

type sessionRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Context   string `db:"context"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type turnRow struct {
	SessionID string `db:"session_id"`
	Seq       int    `db:"seq"`
	Input     string `db:"input"`
	Output    string `db:"output"`
	TS        string `db:"ts"`
}

// CreateSession implements Store.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID string, metadata map[string]any) (*Session, error) {
	now := time.Now()
	if metadata == nil {
		metadata = map[string]any{}
	}
	contextJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode session context")
	}

	id := NewID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, context, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, string(contextJSON), formatTime(now), formatTime(now))
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert session")
	}

	return s.GetSession(ctx, id)
}

// GetSession implements Store.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	return getSession(ctx, s.db, id)
}

type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func getSession(ctx context.Context, q queryer, id string) (*Session, error) {
	var row sessionRow
	err := q.GetContext(ctx, &row, `SELECT id, user_id, context, created_at, updated_at FROM sessions WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("sessions.get", id, "unknown session")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session")
	}

	var turns []turnRow
	if err := q.SelectContext(ctx, &turns, `SELECT session_id, seq, input, output, ts FROM turns WHERE session_id = ? ORDER BY seq`, id); err != nil {
		return nil, errors.Wrap(err, "failed to load turns")
	}

	session := &Session{
		ID:      row.ID,
		UserID:  row.UserID,
		Context: map[string]any{},
		History: make([]Turn, 0, len(turns)),
	}
	if err := json.Unmarshal([]byte(row.Context), &session.Context); err != nil {
		return nil, errors.Wrap(err, "failed to decode session context")
	}
	if session.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, err
	}
	if session.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return nil, err
	}
	for _, t := range turns {
		ts, err := parseTime(t.TS)
		if err != nil {
			return nil, err
		}
		session.History = append(session.History, Turn{Input: t.Input, Output: t.Output, Timestamp: ts})
	}
	return session, nil
}

// UpdateSession implements Store. The whole mutation runs in one
// transaction, so concurrent updates to the same id serialize on
// SQLite's writer lock in arrival order.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, req UpdateRequest) (*Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	session, err := getSession(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if req.empty() {
		return session, nil
	}

	now := time.Now()
	if len(req.ContextPatch) > 0 {
		for k, v := range req.ContextPatch {
			session.Context[k] = v
		}
		contextJSON, err := json.Marshal(session.Context)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode session context")
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET context = ? WHERE id = ?`, string(contextJSON), id); err != nil {
			return nil, errors.Wrap(err, "failed to update session context")
		}
	}

	if req.AppendTurn != nil {
		turn := *req.AppendTurn
		if turn.Timestamp.IsZero() {
			turn.Timestamp = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO turns (session_id, seq, input, output, ts)
			 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?), ?, ?, ?)`,
			id, id, turn.Input, turn.Output, formatTime(turn.Timestamp))
		if err != nil {
			return nil, errors.Wrap(err, "failed to append turn")
		}
		session.History = append(session.History, turn)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, formatTime(now), id); err != nil {
		return nil, errors.Wrap(err, "failed to refresh updated_at")
	}
	session.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit update")
	}
	return session, nil
}

// DeleteSession implements Store.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read delete result")
	}

	if affected == 0 {
		var tombstones int
		if err := tx.GetContext(ctx, &tombstones, `SELECT COUNT(*) FROM deleted_sessions WHERE id = ?`, id); err != nil {
			return errors.Wrap(err, "failed to check tombstones")
		}
		if tombstones == 0 {
			return apperr.NotFound("sessions.delete", id, "unknown session")
		}
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO deleted_sessions (id, deleted_at) VALUES (?, ?)`, id, formatTime(time.Now())); err != nil {
		return errors.Wrap(err, "failed to record tombstone")
	}
	return tx.Commit()
}

// Capture implements Store.
func (s *SQLiteStore) Capture(ctx context.Context, data any, kind string, metadata map[string]any) (*Capture, error) {
	if kind == "" {
		return nil, apperr.Validation("sessions.capture", "", "capture kind must not be empty")
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode capture data")
	}
	var metadataJSON []byte
	if metadata != nil {
		if metadataJSON, err = json.Marshal(metadata); err != nil {
			return nil, errors.Wrap(err, "failed to encode capture metadata")
		}
	}

	capture := &Capture{
		ID:         NewID(),
		Kind:       kind,
		Data:       data,
		Metadata:   metadata,
		CapturedAt: time.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO captures (id, kind, data, metadata, captured_at) VALUES (?, ?, ?, ?, ?)`,
		capture.ID, kind, string(dataJSON), nullable(metadataJSON), formatTime(capture.CapturedAt))
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert capture")
	}
	return capture, nil
}

// ListCaptures implements Store.
func (s *SQLiteStore) ListCaptures(ctx context.Context, kind string) ([]Capture, error) {
	query := `SELECT id, kind, data, metadata, captured_at FROM captures`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY captured_at, id`

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list captures")
	}
	defer rows.Close()

	captures := []Capture{}
	for rows.Next() {
		var (
			c            Capture
			dataJSON     string
			metadataJSON sql.NullString
			capturedAt   string
		)
		if err := rows.Scan(&c.ID, &c.Kind, &dataJSON, &metadataJSON, &capturedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan capture")
		}
		if err := json.Unmarshal([]byte(dataJSON), &c.Data); err != nil {
			return nil, errors.Wrap(err, "failed to decode capture data")
		}
		if metadataJSON.Valid {
			if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
				return nil, errors.Wrap(err, "failed to decode capture metadata")
			}
		}
		if c.CapturedAt, err = parseTime(capturedAt); err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp %q", s)
	}
	return t, nil
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
