package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"vibe/internal/agent"
	"vibe/internal/chat"
	"vibe/internal/config"
	"vibe/internal/i18n"
	"vibe/internal/keybind"
	"vibe/internal/session"
	"vibe/internal/transcript"
)

type scriptedAgent struct {
	initErr error
	events  []agent.Event
	cleared int
}

func (s *scriptedAgent) Initialize(context.Context) error { return s.initErr }

func (s *scriptedAgent) Act(context.Context, string) (agent.Stream, error) {
	return agent.NewSliceStream(s.events...), nil
}

func (s *scriptedAgent) ClearHistory(context.Context) error {
	s.cleared++
	return nil
}

func (s *scriptedAgent) ReloadWithInitialMessages(context.Context, config.Config) error { return nil }
func (s *scriptedAgent) Messages() []chat.Message                                       { return nil }
func (s *scriptedAgent) Stats() agent.Stats                                             { return agent.Stats{} }

func newTestLoop(t *testing.T, a agent.Session, input string) (*Loop, *session.Controller, *bytes.Buffer) {
	t.Helper()
	ctrl := session.New(a, config.Default(), session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_ = ctrl.Initialize(context.Background())
	var out bytes.Buffer
	loop := NewLoop(ctrl, keybind.NewDispatcher(), newBasicLineInput(strings.NewReader(input), &out), &out,
		Options{Model: "test-model", Locale: i18n.New("en")})
	return loop, ctrl, &out
}

func TestRun_StreamsAssistantReply(t *testing.T) {
	a := &scriptedAgent{events: []agent.Event{agent.Delta("Hel"), agent.Delta("lo"), agent.Completion("Hello")}}
	loop, ctrl, out := newTestLoop(t, a, "hi\n")

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Count(out.String(), "Hello\n"); got != 1 {
		t.Fatalf("reply printed %d times:\n%s", got, out.String())
	}
	if !strings.Contains(out.String(), "Bye.") {
		t.Fatalf("missing goodbye:\n%s", out.String())
	}
	entries := ctrl.Transcript().Entries()
	if len(entries) != 2 || entries[1].Content != "Hello" {
		t.Fatalf("unexpected transcript: %+v", entries)
	}
}

func TestRun_FormFeedClearsHistory(t *testing.T) {
	a := &scriptedAgent{}
	loop, ctrl, out := newTestLoop(t, a, "one\ntwo\n\f\n")

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries := ctrl.Transcript().Entries()
	if len(entries) != 1 || entries[0].Role != transcript.RoleUser || entries[0].Content != session.ClearedNotice {
		t.Fatalf("unexpected transcript: %+v", entries)
	}
	if a.cleared != 1 {
		t.Fatalf("agent cleared %d times", a.cleared)
	}
	if !strings.Contains(out.String(), session.ClearedNotice) {
		t.Fatalf("confirmation not printed:\n%s", out.String())
	}
}

func TestFilterRune_CtrlLIsConsumed(t *testing.T) {
	a := &scriptedAgent{}
	loop, ctrl, out := newTestLoop(t, a, "")
	ctrl.Append(transcript.RoleUser, "old")

	refreshed := false
	loop.refresh = func() { refreshed = true }
	if _, pass := loop.FilterRune(12); pass {
		t.Fatalf("ctrl+l should be swallowed")
	}
	if !refreshed {
		t.Fatalf("prompt not refreshed after clear")
	}
	if a.cleared != 1 || ctrl.Transcript().Len() != 1 {
		t.Fatalf("clear did not run: cleared=%d entries=%+v", a.cleared, ctrl.Transcript().Entries())
	}
	if !strings.Contains(out.String(), session.ClearedNotice) {
		t.Fatalf("transcript not redrawn:\n%s", out.String())
	}
}

func TestFilterRune_OtherRunesPassThrough(t *testing.T) {
	a := &scriptedAgent{}
	loop, ctrl, _ := newTestLoop(t, a, "")
	for _, r := range []rune{'l', 'L', 1, 11, 13} {
		got, pass := loop.FilterRune(r)
		if !pass || got != r {
			t.Fatalf("rune %d was intercepted", r)
		}
	}
	if a.cleared != 0 || ctrl.Transcript().Len() != 0 {
		t.Fatalf("non-reserved runes triggered a clear")
	}
}

func TestRun_BlockedSessionReportsError(t *testing.T) {
	loop, _, out := newTestLoop(t, &scriptedAgent{initErr: errors.New("no api key")}, "hi\n")
	err := loop.Run(context.Background())
	var initErr *session.AgentInitializationError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected init error, got %v", err)
	}
	if !strings.Contains(out.String(), "no api key") {
		t.Fatalf("cause not printed:\n%s", out.String())
	}
}

func TestStatusLine_TruncatesToWidth(t *testing.T) {
	loop, _, _ := newTestLoop(t, &scriptedAgent{}, "")
	loop.model = strings.Repeat("very-long-model-name-", 5)
	loop.width = func() int { return 30 }
	line := loop.statusLine()
	if w := runewidth.StringWidth(line); w >= 30 {
		t.Fatalf("status line is %d cells wide: %q", w, line)
	}
	if !strings.HasSuffix(line, "…") {
		t.Fatalf("expected ellipsis: %q", line)
	}
}

func TestBasicLineInput_LastLineWithoutNewline(t *testing.T) {
	in := newBasicLineInput(strings.NewReader("hello"), nil)
	line, err := in.ReadLine("> ")
	if err != nil || line != "hello" {
		t.Fatalf("got %q, %v", line, err)
	}
	if _, err := in.ReadLine("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
