// Package history keeps a local record of finished dictation sessions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"whisperkey/log"
	"whisperkey/session"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		startedAt REAL NOT NULL,
		endedAt REAL NOT NULL,
		outcome TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		audioMs INTEGER NOT NULL DEFAULT 0,
		text TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS sessions_started ON sessions(startedAt);
`

// Entry is one finished session.
type Entry struct {
	ID      string
	Started time.Time
	Ended   time.Time
	Outcome string
	Stage   string // pipeline stage of a failure
	Reason  string
	Audio   time.Duration
	Text    string
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path with WAL journaling.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, startedAt, endedAt, outcome, stage, reason, audioMs, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, unixSeconds(e.Started), unixSeconds(e.Ended), e.Outcome, e.Stage, e.Reason,
		e.Audio.Milliseconds(), e.Text)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to n sessions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, startedAt, endedAt, outcome, stage, reason, audioMs, text
		FROM sessions
		ORDER BY startedAt DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, ended float64
		var audioMs int64
		if err := rows.Scan(&e.ID, &started, &ended, &e.Outcome, &e.Stage, &e.Reason, &audioMs, &e.Text); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.Started = timeFromUnix(started)
		e.Ended = timeFromUnix(ended)
		e.Audio = time.Duration(audioMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Observe records every session that returns to Idle. Write failures are
// logged and otherwise ignored.
func (s *Store) Observe(t session.Transition) {
	e, ok := FromTransition(t)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Record(ctx, e); err != nil {
		log.Warnf("history: %v", err)
	}
}

// FromTransition converts the final transition of a session.
func FromTransition(t session.Transition) (Entry, bool) {
	if t.To != session.Idle || t.Outcome == "" || t.SessionID == "" {
		return Entry{}, false
	}
	e := Entry{
		ID:      t.SessionID,
		Started: t.Started,
		Ended:   t.At,
		Outcome: string(t.Outcome),
		Stage:   session.Stage(t.Reason),
		Audio:   t.Audio,
		Text:    t.Text,
	}
	if t.Reason != nil {
		e.Reason = t.Reason.Error()
	}
	return e, true
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
