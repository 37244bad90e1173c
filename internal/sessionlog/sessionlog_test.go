package sessionlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"vibe/internal/transcript"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	db := newTestDB(t)
	if _, err := os.Stat(db.Path()); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestRecorder_RecordsAppendsAndClearsInOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rec, err := db.Start(ctx, "gpt-test")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	tr := transcript.New(transcript.WithObserver(rec))
	tr.Append(transcript.RoleUser, "hello")
	tr.Append(transcript.RoleAssistant, "hi there")
	tr.Update(func(tx *transcript.Tx) {
		tx.Clear()
		tx.Append(transcript.RoleUser, "Conversation history cleared!")
	})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := db.Events(ctx, rec.SessionID())
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	want := []struct {
		kind, role, content string
	}{
		{KindAppend, "user", "hello"},
		{KindAppend, "assistant", "hi there"},
		{KindClear, "", ""},
		{KindAppend, "user", "Conversation history cleared!"},
	}
	for i, w := range want {
		e := events[i]
		if e.Kind != w.kind || e.Role != w.role || e.Content != w.content {
			t.Fatalf("event %d = %+v, want %+v", i, e, w)
		}
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("unexpected seqs: %d, %d", events[0].Seq, events[1].Seq)
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatalf("created_at not parsed")
	}
}

func TestRecorder_SessionsAreSeparate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, err := db.Start(ctx, "m")
	if err != nil {
		t.Fatalf("Start a: %v", err)
	}
	b, err := db.Start(ctx, "m")
	if err != nil {
		t.Fatalf("Start b: %v", err)
	}
	if a.SessionID() == b.SessionID() {
		t.Fatalf("session IDs collide")
	}

	a.OnChange(transcript.Change{Kind: transcript.ChangeAppend, Entry: transcript.Entry{Seq: 1, Role: transcript.RoleUser, Content: "for a"}})
	_ = a.Close()
	_ = b.Close()

	ids, err := db.Sessions(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("Sessions = %v, %v", ids, err)
	}
	evB, err := db.Events(ctx, b.SessionID())
	if err != nil || len(evB) != 0 {
		t.Fatalf("session b has events: %+v, %v", evB, err)
	}
}

func TestRecorder_IgnoresChangesAfterClose(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rec, err := db.Start(ctx, "m")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = rec.Close()
	rec.OnChange(transcript.Change{Kind: transcript.ChangeClear})
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	events, err := db.Events(ctx, rec.SessionID())
	if err != nil || len(events) != 0 {
		t.Fatalf("events after close: %+v, %v", events, err)
	}
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.OnChange(transcript.Change{Kind: transcript.ChangeClear})
	if s.SessionID() != "" || s.Close() != nil {
		t.Fatalf("nop sink should be inert")
	}
}
