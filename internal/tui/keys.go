package tui

import (
	"vibe/internal/i18n"
	"vibe/internal/keybind"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap 定义全局快捷键绑定
// KeyMap defines global keybindings
type KeyMap struct {
	Submit       key.Binding
	Interrupt    key.Binding
	ClearHistory key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	Quit         key.Binding
}

// DefaultKeyMap 默认快捷键；清空历史的绑定来自 keybind 的保留表，仅用于帮助行
// DefaultKeyMap returns default keybindings; the clear binding mirrors the
// reserved keybind table and is only used for help text
func DefaultKeyMap(locale *i18n.I18n) KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", locale.T("help.send")),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", locale.T("help.interrupt")),
		),
		ClearHistory: key.NewBinding(
			key.WithKeys(keybind.ChordClearHistory),
			key.WithHelp(keybind.ChordClearHistory, locale.T("help.clear")),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup/pgdn", locale.T("help.scroll")),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", locale.T("help.quit")),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Interrupt, k.ClearHistory, k.PageUp, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
