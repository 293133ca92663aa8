// Package eventlog keeps an append-only journal of engine events (state
// transitions, order outcomes, halts) in a standalone SQLite file, so a
// post-mortem survives even when the main store is suspect.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	fields TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
`

// Event kinds written by the engine.
const (
	KindTransition = "transition"
	KindOrder      = "order"
	KindRisk       = "risk"
	KindReconcile  = "reconcile"
	KindLifecycle  = "lifecycle"
)

// Event is one journal row.
type Event struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type Log struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func Open(path string) (*Log, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("eventlog: path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: init schema: %w", err)
	}
	return &Log{db: db, path: path}, nil
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Append writes one event. Fields may be nil.
func (l *Log) Append(ctx context.Context, kind, message string, fields map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var raw []byte
	if len(fields) > 0 {
		var err error
		raw, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("eventlog: marshal fields: %w", err)
		}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events (ts, kind, message, fields) VALUES (?, ?, ?, ?)`,
		time.Now().UnixMilli(), kind, message, string(raw))
	return err
}

// Recent returns the newest events, optionally filtered by kind.
func (l *Log) Recent(ctx context.Context, kind string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, ts, kind, message, COALESCE(fields, '') FROM events`
	args := make([]any, 0, 2)
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			evt    Event
			tsMill int64
			raw    string
		)
		if err := rows.Scan(&evt.ID, &tsMill, &evt.Kind, &evt.Message, &raw); err != nil {
			return nil, err
		}
		evt.Timestamp = time.UnixMilli(tsMill)
		if raw != "" {
			_ = json.Unmarshal([]byte(raw), &evt.Fields)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
