package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vibe/internal/i18n"
	"vibe/internal/keybind"
	"vibe/internal/session"
	"vibe/internal/transcript"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// --- Tea Messages ---

// ClearDoneMsg 清空历史完成
// ClearDoneMsg reports that a history clear finished
type ClearDoneMsg struct{ Err error }

// TurnStartedMsg 提交已被会话接受（或拒绝）
// TurnStartedMsg reports that a submission was accepted or rejected
type TurnStartedMsg struct {
	Turn *session.Turn
	Err  error
}

// TurnEventMsg 回合推进了一步
// TurnEventMsg reports that a turn consumed one event
type TurnEventMsg struct {
	Turn *session.Turn
	Done bool
}

// RefreshMsg 宿主在外部挂载条目后请求重绘
// RefreshMsg asks the app to redraw after the host mounted entries
type RefreshMsg struct{}

// Options 构造 App 的可选项
// Options carries optional App settings
type Options struct {
	Model   string
	Offline bool
	Locale  *i18n.I18n
}

// App Bubble Tea 主 Model
// App is the main Bubble Tea model
type App struct {
	// 布局 / Layout
	width  int
	height int

	// 会话 / Session
	ctx        context.Context
	ctrl       *session.Controller
	dispatcher *keybind.Dispatcher
	turn       *session.Turn
	clearing   bool
	// submitting 为 true 时提交仍在等待控制器接受
	// submitting is true until the controller accepted or rejected a submission
	submitting bool
	// 清空或提交进行中到达的按键，完成后按顺序重放
	// keys that arrive while a clear or submission is in flight, replayed in order afterwards
	pending []tea.KeyMsg

	// 组件 / Components
	view    viewport.Model
	input   textarea.Model
	spinner spinner.Model
	help    help.Model

	// 状态 / State
	lastError string
	model     string
	offline   bool

	// 配置 / Config
	theme    Theme
	keys     KeyMap
	locale   *i18n.I18n
	renderer *renderer
}

// NewApp 创建 TUI 应用；ctrl 应已完成 Initialize
// NewApp creates the TUI application; ctrl should already be initialized
func NewApp(ctrl *session.Controller, dispatcher *keybind.Dispatcher, opts Options) App {
	locale := opts.Locale
	if locale == nil {
		locale = i18n.Global()
	}
	if dispatcher == nil {
		dispatcher = keybind.NewDispatcher()
	}

	ta := textarea.New()
	ta.Placeholder = locale.T("input.placeholder")
	ta.CharLimit = 8192
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme := DarkTheme()
	sp.Style = theme.TitleStyle

	return App{
		ctx:        context.Background(),
		ctrl:       ctrl,
		dispatcher: dispatcher,
		view:       viewport.New(80, 20),
		input:      ta,
		spinner:    sp,
		help:       help.New(),
		model:      opts.Model,
		offline:    opts.Offline,
		theme:      theme,
		keys:       DefaultKeyMap(locale),
		locale:     locale,
		renderer:   newRenderer(theme, locale, 80),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.spinner.Tick)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Quit) {
			if a.turn != nil {
				a.ctrl.Interrupt()
			}
			return a, tea.Quit
		}
		if a.ctrl.Blocked() != nil {
			return a, nil
		}
		if a.clearing || a.submitting {
			a.pending = append(a.pending, msg)
			return a, nil
		}
		var cmd tea.Cmd
		action := a.dispatcher.OnKey(msg.String(), func(string) {
			cmd = a.handleKey(msg)
		})
		if action == keybind.ActionClearHistory {
			return a, a.startClear()
		}
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case ClearDoneMsg:
		a.clearing = false
		if msg.Err != nil {
			a.lastError = msg.Err.Error()
		}
		a.refresh()
		return a.replayPending()

	case TurnStartedMsg:
		a.submitting = false
		a.refresh()
		if msg.Err != nil {
			a.lastError = a.describe(msg.Err)
			return a.replayPending()
		}
		var step tea.Cmd
		if !msg.Turn.Done() {
			a.turn = msg.Turn
			step = a.step(msg.Turn)
		}
		m, replay := a.replayPending()
		return m, tea.Batch(step, replay)

	case TurnEventMsg:
		if msg.Turn != a.turn {
			// the turn was superseded by a clear
			return a, nil
		}
		a.refresh()
		if !msg.Done {
			return a, a.step(msg.Turn)
		}
		a.turn = nil
		if err := msg.Turn.Err(); err != nil {
			a.lastError = err.Error()
		}
		return a, nil

	case RefreshMsg:
		a.refresh()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleKey 处理非保留快捷键
// handleKey handles every chord the dispatcher passed through
func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Submit):
		text := strings.TrimSpace(a.input.Value())
		if text == "" {
			return nil
		}
		if a.turn != nil {
			a.lastError = a.locale.T("error.busy")
			return nil
		}
		a.input.Reset()
		a.lastError = ""
		a.submitting = true
		return a.submit(text)
	case key.Matches(msg, a.keys.Interrupt):
		if a.turn != nil {
			a.ctrl.Interrupt()
		}
		return nil
	case key.Matches(msg, a.keys.PageUp), key.Matches(msg, a.keys.PageDown):
		var cmd tea.Cmd
		a.view, cmd = a.view.Update(msg)
		return cmd
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return cmd
}

func (a *App) startClear() tea.Cmd {
	a.clearing = true
	a.turn = nil
	a.lastError = ""
	ctrl, ctx := a.ctrl, a.ctx
	return func() tea.Msg {
		return ClearDoneMsg{Err: ctrl.Clear(ctx)}
	}
}

func (a App) replayPending() (tea.Model, tea.Cmd) {
	pending := a.pending
	a.pending = nil
	var (
		m    tea.Model = a
		cmds []tea.Cmd
	)
	for _, k := range pending {
		var cmd tea.Cmd
		m, cmd = m.Update(k)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (a *App) submit(text string) tea.Cmd {
	ctrl, ctx := a.ctrl, a.ctx
	return func() tea.Msg {
		turn, err := ctrl.Submit(ctx, text)
		return TurnStartedMsg{Turn: turn, Err: err}
	}
}

func (a *App) step(turn *session.Turn) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		return TurnEventMsg{Turn: turn, Done: turn.Step(ctx)}
	}
}

func (a *App) describe(err error) string {
	if errors.Is(err, session.ErrBusy) {
		return a.locale.T("error.busy")
	}
	return err.Error()
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}
	if err := a.ctrl.Blocked(); err != nil {
		return a.renderBlocked(err)
	}

	header := a.theme.TitleStyle.Render(" " + a.locale.T("app.title"))
	inputBox := a.theme.InputStyle.Width(a.width).Render(a.input.View())
	parts := []string{header, a.view.View(), inputBox}
	if a.lastError != "" {
		parts = append(parts, a.theme.ErrorStyle.Render(" "+a.lastError))
	}
	parts = append(parts, a.renderStatusBar(a.width), " "+a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// --- 内部方法 / Internal methods ---

func (a *App) relayout() {
	const (
		headerHeight = 1
		inputHeight  = 4
		footerHeight = 3
	)
	viewHeight := a.height - headerHeight - inputHeight - footerHeight
	if viewHeight < 3 {
		viewHeight = 3
	}
	a.view.Width = a.width
	a.view.Height = viewHeight
	a.input.SetWidth(a.width - 2)
	a.help.Width = a.width
	a.renderer = newRenderer(a.theme, a.locale, a.width-4)
	a.refresh()
}

func (a *App) refresh() {
	tr := a.ctrl.Transcript()
	entries := tr.Entries()
	var draft *transcript.Entry
	if d, ok := tr.Draft(); ok {
		draft = &d
	}
	a.view.SetContent(a.renderer.transcript(entries, draft))
	a.view.GotoBottom()
}

func (a App) renderStatusBar(width int) string {
	status := a.locale.T("status.ready")
	switch {
	case a.clearing:
		status = a.spinner.View() + " " + a.locale.T("status.clearing")
	case a.turn != nil:
		status = a.spinner.View() + " " + a.locale.T("status.streaming")
	}

	model := a.model
	if a.offline {
		model = a.locale.T("status.offline")
	}
	left := fmt.Sprintf(" %s · %s", model, status)
	stats := a.ctrl.Agent().Stats()
	right := a.locale.T("status.tokens", stats.ContextTokens, stats.SessionCost) + "  "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return a.theme.StatusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func (a App) renderBlocked(err error) string {
	var cause error = err
	var initErr *session.AgentInitializationError
	if errors.As(err, &initErr) {
		cause = initErr.Err
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		a.theme.TitleStyle.Render(a.locale.T("app.title")),
		"",
		a.theme.ErrorStyle.Render(a.locale.T("error.init", cause.Error())),
		"",
		a.theme.MutedStyle.Render(a.locale.T("error.init_hint")),
	)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, body)
}

// Run 启动 Bubble Tea TUI
// Run starts the Bubble Tea TUI application
func Run(ctx context.Context, ctrl *session.Controller, dispatcher *keybind.Dispatcher, opts Options) error {
	app := NewApp(ctrl, dispatcher, opts)
	app.ctx = ctx
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
