// Package repl is the plain line-mode front-end. It shares the session
// controller and the key dispatcher with the TUI; ctrl+l is intercepted at the
// rune level and the clear runs synchronously before the prompt is redrawn.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"vibe/internal/i18n"
	"vibe/internal/keybind"
	"vibe/internal/session"
	"vibe/internal/transcript"
)

// ANSI colors for prompt
const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[90m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiClear = "\x1b[H\x1b[2J"
)

type Options struct {
	Model       string
	Locale      *i18n.I18n
	HistoryPath string
}

// Loop 持有 REPL 状态：会话控制器、快捷键分发器与输出位置
// Loop holds REPL state: the session controller, the key dispatcher and output progress
type Loop struct {
	ctrl       *session.Controller
	dispatcher *keybind.Dispatcher
	locale     *i18n.I18n
	model      string

	in      lineInput
	out     io.Writer
	color   bool
	width   func() int
	refresh func()
	ctx     context.Context

	// mu guards output; the readline filter runs on its own goroutine.
	mu sync.Mutex
	// lastSeq is the last committed entry already written to out
	lastSeq uint64
	// printed is how much of the current draft is already on screen
	printed int
}

// NewLoop builds a loop over explicit input and output.
func NewLoop(ctrl *session.Controller, dispatcher *keybind.Dispatcher, in lineInput, out io.Writer, opts Options) *Loop {
	locale := opts.Locale
	if locale == nil {
		locale = i18n.Global()
	}
	if dispatcher == nil {
		dispatcher = keybind.NewDispatcher()
	}
	return &Loop{
		ctrl:       ctrl,
		dispatcher: dispatcher,
		locale:     locale,
		model:      opts.Model,
		in:         in,
		out:        out,
		width:      func() int { return 80 },
		refresh:    func() {},
		ctx:        context.Background(),
	}
}

// Run 在终端上运行 REPL：TTY 使用 readline，否则逐行读取标准输入
// Run runs the REPL on the terminal: readline on a TTY, plain line reads otherwise
func Run(ctx context.Context, ctrl *session.Controller, dispatcher *keybind.Dispatcher, opts Options) error {
	loop := NewLoop(ctrl, dispatcher, nil, os.Stdout, opts)
	stdoutFd := int(os.Stdout.Fd())
	loop.width = func() int {
		if w, _, err := term.GetSize(stdoutFd); err == nil && w > 0 {
			return w
		}
		return 80
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		rl, err := newReadlineInput(opts.HistoryPath, loop.FilterRune)
		if err == nil {
			defer rl.Close()
			loop.in = rl
			loop.out = rl.Stdout()
			loop.refresh = rl.Refresh
			loop.color = useColor()
			return loop.Run(ctx)
		}
	}
	loop.in = newBasicLineInput(os.Stdin, os.Stdout)
	return loop.Run(ctx)
}

// Run reads lines until EOF and submits each one as a turn.
func (l *Loop) Run(ctx context.Context) error {
	l.ctx = ctx
	if err := l.ctrl.Blocked(); err != nil {
		l.printBlocked(err)
		return err
	}
	l.printf("%s\n", l.paint(ansiDim, l.locale.T("repl.welcome", l.model)))
	l.redraw(false)

	for {
		l.printStatus()
		line, err := l.in.ReadLine(l.paint(ansiGreen, "> "))
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.printf("%s\n", l.locale.T("repl.bye"))
				return nil
			}
			return err
		}
		text := strings.TrimSpace(l.consumeControlRunes(line))
		if text == "" {
			continue
		}

		turn, err := l.ctrl.Submit(ctx, text)
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				l.printf("%s\n", l.paint(ansiRed, l.locale.T("error.busy")))
			}
			l.flush()
			continue
		}
		for {
			done := turn.Step(ctx)
			l.flush()
			if done {
				break
			}
		}
	}
}

// FilterRune 是 readline 的按键过滤器；保留快捷键被消费并同步执行
// FilterRune is the readline rune filter; reserved chords are consumed and run synchronously
func (l *Loop) FilterRune(r rune) (rune, bool) {
	var pass bool
	action := l.dispatcher.OnKey(keybind.ChordFromRune(r), func(string) { pass = true })
	if action == keybind.ActionClearHistory {
		l.clearHistory()
		l.refresh()
		return r, false
	}
	return r, pass
}

// consumeControlRunes 处理非 TTY 输入中的控制字符（例如换页符 \f 即 ctrl+l）
// consumeControlRunes handles control runes found in non-TTY input, e.g. form feed for ctrl+l
func (l *Loop) consumeControlRunes(line string) string {
	var b strings.Builder
	for _, r := range line {
		if r >= 1 && r <= 26 && r != '\t' {
			if l.dispatcher.OnKey(keybind.ChordFromRune(r), nil) == keybind.ActionClearHistory {
				l.clearHistory()
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (l *Loop) clearHistory() {
	if err := l.ctrl.Clear(l.ctx); err != nil {
		// the controller already appended a notice entry
		l.flush()
		return
	}
	l.redraw(true)
}

// redraw 重绘整个转录
// redraw prints the whole transcript, optionally clearing the screen first
func (l *Loop) redraw(clearScreen bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if clearScreen && l.color {
		_, _ = io.WriteString(l.out, ansiClear)
	}
	l.printed = 0
	for _, e := range l.ctrl.Transcript().Entries() {
		l.writeEntryLocked(e)
		l.lastSeq = e.Seq
	}
}

// flush 输出自上次以来新提交的条目与草稿增量
// flush writes entries committed since the last call plus the draft delta
func (l *Loop) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tr := l.ctrl.Transcript()
	for e := range tr.Query(func(e transcript.Entry) bool { return e.Seq > l.lastSeq }) {
		l.lastSeq = e.Seq
		if e.Role == transcript.RoleUser {
			// typed at the prompt, already visible
			continue
		}
		if e.Role == transcript.RoleAssistant && l.printed > 0 && l.printed <= len(e.Content) {
			_, _ = io.WriteString(l.out, e.Content[l.printed:]+"\n")
			l.printed = 0
			continue
		}
		if l.printed > 0 {
			_, _ = io.WriteString(l.out, "\n")
			l.printed = 0
		}
		l.writeEntryLocked(e)
	}
	if d, ok := tr.Draft(); ok && len(d.Content) > l.printed {
		_, _ = io.WriteString(l.out, d.Content[l.printed:])
		l.printed = len(d.Content)
	}
}

func (l *Loop) writeEntryLocked(e transcript.Entry) {
	switch e.Role {
	case transcript.RoleUser:
		fmt.Fprintf(l.out, "%s%s\n", l.paint(ansiGreen, "> "), e.Content)
	case transcript.RoleAssistant:
		fmt.Fprintf(l.out, "%s\n", e.Content)
	default:
		fmt.Fprintf(l.out, "%s\n", l.paint(ansiDim, "· "+e.Content))
	}
}

// statusLine 生成提示符上方的状态行，按终端宽度截断
// statusLine builds the line above the prompt, truncated to the terminal width
func (l *Loop) statusLine() string {
	stats := l.ctrl.Agent().Stats()
	line := fmt.Sprintf("%s · %s", l.model, l.locale.T("status.tokens", stats.ContextTokens, stats.SessionCost))
	if w := l.width(); w > 1 && runewidth.StringWidth(line) >= w {
		line = runewidth.Truncate(line, w-1, "…")
	}
	return line
}

func (l *Loop) printStatus() {
	l.printf("%s\n", l.paint(ansiDim, l.statusLine()))
}

func (l *Loop) printBlocked(err error) {
	cause := err
	var initErr *session.AgentInitializationError
	if errors.As(err, &initErr) {
		cause = initErr.Err
	}
	l.printf("%s\n", l.paint(ansiRed, l.locale.T("error.init", cause.Error())))
}

func (l *Loop) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.out, format, args...)
}

func (l *Loop) paint(color, s string) string {
	if !l.color {
		return s
	}
	return color + s + ansiReset
}

func useColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
