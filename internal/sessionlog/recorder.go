package sessionlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vibe/internal/observability"
	"vibe/internal/transcript"
)

// Sink 是会话日志的观察者接口；Close 会冲刷尚未写入的事件
// Sink is a transcript observer backed by the session log; Close flushes pending events
type Sink interface {
	transcript.Observer
	SessionID() string
	Close() error
}

// Recorder 把转录变更异步写入日志库；OnChange 从不等待磁盘 I/O
// Recorder writes transcript changes to the log asynchronously; OnChange never waits on disk I/O
type Recorder struct {
	db        *DB
	sessionID string
	logger    *slog.Logger

	mu      sync.Mutex
	queue   []Event
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func newRecorder(db *DB, sessionID string) *Recorder {
	r := &Recorder{
		db:        db,
		sessionID: sessionID,
		logger:    observability.WithFields("component", "sessionlog", "session_id", sessionID),
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) SessionID() string { return r.sessionID }

// OnChange 入队一次变更；ID 在入队时分配，因此写入顺序与变更顺序一致
// OnChange enqueues one change; IDs are assigned here so rows sort in mutation order
func (r *Recorder) OnChange(c transcript.Change) {
	now := time.Now()
	e := Event{
		ID:        r.db.newID(now),
		SessionID: r.sessionID,
		CreatedAt: now,
	}
	switch c.Kind {
	case transcript.ChangeClear:
		e.Kind = KindClear
	default:
		e.Kind = KindAppend
		e.Seq = c.Entry.Seq
		e.Role = c.Entry.Role.String()
		e.Content = c.Entry.Content
		if !c.Entry.CreatedAt.IsZero() {
			e.CreatedAt = c.Entry.CreatedAt
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.queue = append(r.queue, e)
	// wake is closed under mu, so the send cannot race Close
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Recorder) run() {
	defer close(r.stopped)
	for range r.wake {
		r.drain()
	}
	r.drain()
}

func (r *Recorder) drain() {
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			if err := r.db.insert(context.Background(), e); err != nil {
				r.logger.Warn("session log write failed", "kind", e.Kind, "seq", e.Seq, "error", err)
			}
		}
	}
}

// Close 停止接收变更并等待队列写完
// Close stops accepting changes and waits for the queue to be written
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.stopped
		return nil
	}
	r.closed = true
	close(r.wake)
	r.mu.Unlock()

	<-r.stopped
	return nil
}

// Nop 在会话日志关闭时使用
// Nop is used when session logging is disabled
type Nop struct{}

func (Nop) OnChange(transcript.Change) {}
func (Nop) SessionID() string          { return "" }
func (Nop) Close() error               { return nil }
