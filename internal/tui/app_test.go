package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"vibe/internal/agent"
	"vibe/internal/chat"
	"vibe/internal/config"
	"vibe/internal/i18n"
	"vibe/internal/keybind"
	"vibe/internal/session"
	"vibe/internal/transcript"

	tea "github.com/charmbracelet/bubbletea"
)

// scriptedAgent replays fixed events for every Act.
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

func newTestApp(t *testing.T, a agent.Session) (App, *session.Controller) {
	t.Helper()
	ctrl := session.New(a, config.Default(), session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_ = ctrl.Initialize(context.Background())
	app := NewApp(ctrl, keybind.NewDispatcher(), Options{Model: "test-model", Locale: i18n.New("en")})
	return update(t, app, tea.WindowSizeMsg{Width: 100, Height: 30}), ctrl
}

func update(t *testing.T, app App, msg tea.Msg) App {
	t.Helper()
	m, _ := app.Update(msg)
	return m.(App)
}

func updateCmd(t *testing.T, app App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	m, cmd := app.Update(msg)
	return m.(App), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCtrlL_ClearsTranscriptAndShowsConfirmation(t *testing.T) {
	a := &scriptedAgent{}
	app, ctrl := newTestApp(t, a)
	ctrl.Append(transcript.RoleUser, "first question")
	ctrl.Append(transcript.RoleAssistant, "first answer")
	ctrl.Append(transcript.RoleUser, "second question")
	app = update(t, app, RefreshMsg{})
	if !strings.Contains(app.View(), "second question") {
		t.Fatalf("mounted messages not rendered")
	}

	app, cmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyCtrlL})
	if cmd == nil {
		t.Fatalf("ctrl+l should schedule a clear")
	}
	if !app.clearing {
		t.Fatalf("app should be clearing")
	}
	if app.input.Value() != "" {
		t.Fatalf("ctrl+l leaked into the input: %q", app.input.Value())
	}

	msg := cmd()
	done, ok := msg.(ClearDoneMsg)
	if !ok || done.Err != nil {
		t.Fatalf("unexpected message %#v", msg)
	}
	app = update(t, app, msg)

	entries := ctrl.Transcript().Entries()
	if len(entries) != 1 || entries[0].Role != transcript.RoleUser || entries[0].Content != session.ClearedNotice {
		t.Fatalf("unexpected transcript after clear: %+v", entries)
	}
	if a.cleared != 1 {
		t.Fatalf("agent history cleared %d times", a.cleared)
	}
	view := app.View()
	if !strings.Contains(view, session.ClearedNotice) || strings.Contains(view, "first question") {
		t.Fatalf("view not redrawn after clear:\n%s", view)
	}
}

func TestCtrlL_QueuesKeysUntilClearFinishes(t *testing.T) {
	app, _ := newTestApp(t, &scriptedAgent{})

	app, cmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyCtrlL})
	app = update(t, app, runes("h"))
	app = update(t, app, runes("i"))
	if len(app.pending) != 2 || app.input.Value() != "" {
		t.Fatalf("keys should be queued while clearing: pending=%d input=%q", len(app.pending), app.input.Value())
	}

	app = update(t, app, cmd())
	if app.clearing || len(app.pending) != 0 {
		t.Fatalf("queue not drained")
	}
	if app.input.Value() != "hi" {
		t.Fatalf("queued keys replayed out of order: %q", app.input.Value())
	}
}

func TestNonReservedKeysReachInput(t *testing.T) {
	app, ctrl := newTestApp(t, &scriptedAgent{})
	app = update(t, app, runes("l"))
	if app.clearing {
		t.Fatalf("plain l must not trigger a clear")
	}
	if app.input.Value() != "l" {
		t.Fatalf("expected l in input, got %q", app.input.Value())
	}
	if ctrl.Transcript().Len() != 0 {
		t.Fatalf("transcript changed")
	}
}

func TestSubmit_PumpsTurnEvents(t *testing.T) {
	a := &scriptedAgent{events: []agent.Event{
		agent.Delta("Hi "), agent.Delta("there"), agent.Completion("Hi there"),
	}}
	app, ctrl := newTestApp(t, a)

	app = update(t, app, runes("hello"))
	app, cmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("enter should submit")
	}
	if app.input.Value() != "" {
		t.Fatalf("input not reset after submit")
	}

	steps := 0
	for cmd != nil {
		if steps++; steps > 10 {
			t.Fatalf("turn did not finish")
		}
		app, cmd = updateCmd(t, app, cmd())
	}
	if app.turn != nil {
		t.Fatalf("turn still active")
	}

	entries := ctrl.Transcript().Entries()
	if len(entries) != 2 || entries[0].Content != "hello" || entries[1].Content != "Hi there" {
		t.Fatalf("unexpected transcript: %+v", entries)
	}
}

func TestClearDuringTurn_IgnoresStaleEvents(t *testing.T) {
	a := &scriptedAgent{events: []agent.Event{agent.Delta("partial"), agent.Completion("partial")}}
	app, ctrl := newTestApp(t, a)

	app = update(t, app, runes("q"))
	app, cmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	app, stepCmd := updateCmd(t, app, cmd())
	if app.turn == nil || stepCmd == nil {
		t.Fatalf("turn should be running")
	}

	app, clearCmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyCtrlL})
	app = update(t, app, clearCmd())
	app, next := updateCmd(t, app, stepCmd())
	if next != nil {
		t.Fatalf("stale turn kept pumping")
	}

	entries := ctrl.Transcript().Entries()
	if len(entries) != 1 || entries[0].Content != session.ClearedNotice {
		t.Fatalf("unexpected transcript: %+v", entries)
	}
}

func TestInitFailure_ShowsBlockingError(t *testing.T) {
	app, ctrl := newTestApp(t, &scriptedAgent{initErr: errors.New("missing api key")})
	view := app.View()
	if !strings.Contains(view, "missing api key") {
		t.Fatalf("blocking error not shown:\n%s", view)
	}

	app, cmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyCtrlL})
	if cmd != nil || app.clearing {
		t.Fatalf("blocked app accepted ctrl+l")
	}
	app = update(t, app, runes("x"))
	if app.input.Value() != "" {
		t.Fatalf("blocked app accepted input")
	}
	if ctrl.Transcript().Len() != 1 {
		t.Fatalf("expected only the init notice, got %+v", ctrl.Transcript().Entries())
	}

	_, cmd = updateCmd(t, app, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestHelpLineListsClearBinding(t *testing.T) {
	app, _ := newTestApp(t, &scriptedAgent{})
	if !strings.Contains(app.View(), "ctrl+l") {
		t.Fatalf("help line should mention ctrl+l:\n%s", app.View())
	}
}

// drain runs cmd and every command it produces, batches in order, feeding
// each message back through Update.
func drain(t *testing.T, app App, cmd tea.Cmd) App {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 50 {
			t.Fatalf("commands did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		var more tea.Cmd
		app, more = updateCmd(t, app, msg)
		queue = append(queue, more)
	}
	return app
}

func TestCtrlL_WaitsForPendingSubmission(t *testing.T) {
	a := agent.NewNoop()
	app, ctrl := newTestApp(t, a)

	app = update(t, app, runes("hello"))
	app, submitCmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if submitCmd == nil || !app.submitting {
		t.Fatalf("enter should start a submission")
	}
	app, cmd := updateCmd(t, app, tea.KeyMsg{Type: tea.KeyCtrlL})
	if cmd != nil || app.clearing || len(app.pending) != 1 {
		t.Fatalf("ctrl+l should wait for the submission: clearing=%v pending=%d", app.clearing, len(app.pending))
	}

	// the turn starts before the clear does
	app, cmd = updateCmd(t, app, submitCmd())
	if app.submitting || !app.clearing {
		t.Fatalf("queued ctrl+l not replayed after the turn started")
	}
	app = drain(t, app, cmd)

	if app.clearing || app.turn != nil {
		t.Fatalf("app did not settle: clearing=%v turn=%v", app.clearing, app.turn)
	}
	if st := ctrl.State(); st != session.StateIdle {
		t.Fatalf("controller left in %s", st)
	}
	if msgs := a.Messages(); len(msgs) != 0 {
		t.Fatalf("agent memory after clear: %+v", msgs)
	}
	entries := ctrl.Transcript().Entries()
	if len(entries) != 1 || entries[0].Content != session.ClearedNotice {
		t.Fatalf("unexpected transcript: %+v", entries)
	}

	app = update(t, app, runes("again"))
	app, submitCmd = updateCmd(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	started, ok := submitCmd().(TurnStartedMsg)
	if !ok || started.Err != nil {
		t.Fatalf("second submission rejected: %#v", started)
	}
	_ = drain(t, app, func() tea.Msg { return started })
	if msgs := a.Messages(); len(msgs) != 1 || msgs[0].Content != "again" {
		t.Fatalf("unexpected memory: %+v", msgs)
	}
}
