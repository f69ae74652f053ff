// Package sqlite stores conversation transcripts in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/parlance/pkg/domain"
	_ "modernc.org/sqlite"
)

// Transcript implements ports.TranscriptSink using SQLite.
type Transcript struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*Transcript, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY and keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Transcript{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Transcript) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS transcript (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_id TEXT NOT NULL DEFAULT '',
		state_id TEXT NOT NULL DEFAULT '',
		speaker TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		confidence REAL,
		at_ns INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcript_session ON transcript(session_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Append inserts one line.
func (s *Transcript) Append(ctx context.Context, e domain.TranscriptEntry) error {
	var conf sql.NullFloat64
	if e.Confidence != nil {
		conf = sql.NullFloat64{Float64: *e.Confidence, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript (session_id, turn_id, state_id, speaker, kind, text, intent, confidence, at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.TurnID, e.StateID, string(e.Speaker), e.Kind, e.Text, e.Intent, conf, e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert transcript entry: %w", err)
	}
	return nil
}

// List returns the session's lines in insertion order.
func (s *Transcript) List(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, turn_id, state_id, speaker, kind, text, intent, confidence, at_ns
		FROM transcript WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	out := []domain.TranscriptEntry{}
	for rows.Next() {
		var (
			e       domain.TranscriptEntry
			speaker string
			conf    sql.NullFloat64
			atNs    int64
		)
		if err := rows.Scan(&e.SessionID, &e.TurnID, &e.StateID, &speaker, &e.Kind, &e.Text, &e.Intent, &conf, &atNs); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		e.Speaker = domain.Speaker(speaker)
		if conf.Valid {
			c := conf.Float64
			e.Confidence = &c
		}
		e.At = time.Unix(0, atNs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the session's lines.
func (s *Transcript) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcript WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Transcript) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Transcript) Close() error {
	return s.db.Close()
}
