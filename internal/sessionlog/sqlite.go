// Package sessionlog records transcript changes into a write-only SQLite
// audit log. Nothing is ever loaded back into a session.
package sessionlog

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the session logging dir.
const FileName = "sessions.db"

// DB 基于 SQLite (WAL 模式) 的会话日志库
// DB is the SQLite (WAL mode) session log database
type DB struct {
	db   *sql.DB
	path string

	// ulid.Monotonic is not safe for concurrent use
	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Event 日志中的一行
// Event is one recorded row
type Event struct {
	ID        string
	SessionID string
	Seq       uint64
	Kind      string
	Role      string
	Content   string
	CreatedAt time.Time
}

const (
	KindAppend = "append"
	KindClear  = "clear"
)

// Open 在 dir 下打开（必要时创建）日志库
// Open opens, creating if needed, the log database inside dir
func Open(dir string) (*DB, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("session log dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session log dir: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer goroutine per recorder; a single connection keeps the pragmas in effect
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	d := &DB{
		db:      db,
		path:    dbPath,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := d.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return d, nil
}

func (d *DB) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		model      TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL DEFAULT 0,
		kind       TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close 关闭数据库连接 / Close the database connection
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) newID(at time.Time) string {
	d.idMu.Lock()
	defer d.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), d.entropy).String()
}

// Start 登记一个新会话并返回它的记录器
// Start registers a new session and returns its recorder
func (d *DB) Start(ctx context.Context, model string) (*Recorder, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO sessions (id, model, started_at) VALUES (?, ?, ?)`,
		id, model, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return newRecorder(d, id), nil
}

// Sessions lists session IDs, oldest first.
func (d *DB) Sessions(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Events 按记录顺序返回某会话的全部事件
// Events returns every event of a session in recording order
func (d *DB) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, session_id, seq, kind, role, content, created_at
		 FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			created string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &e.Kind, &e.Role, &e.Content, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (d *DB) insert(ctx context.Context, e Event) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO events (id, session_id, seq, kind, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Seq, e.Kind, e.Role, e.Content, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
