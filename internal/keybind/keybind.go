// Package keybind resolves key chords to application actions. The table is
// static: reserved chords cannot be remapped.
package keybind

import (
	"sort"
	"strings"
)

// Action 保留快捷键触发的动作
// Action is what a reserved chord triggers
type Action int

const (
	ActionNone Action = iota
	ActionClearHistory
)

func (a Action) String() string {
	switch a {
	case ActionClearHistory:
		return "clear_history"
	default:
		return "none"
	}
}

// ChordClearHistory is the canonical chord bound to ActionClearHistory.
const ChordClearHistory = "ctrl+l"

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"meta":    "alt",
	"shift":   "shift",
}

var modifierOrder = map[string]int{"ctrl": 0, "alt": 1, "shift": 2}

// NormalizeChord 规范化快捷键写法：小写、修饰键归一并排在按键之前
// NormalizeChord returns the canonical form of a chord: lower case, modifiers
// de-aliased and ordered before the key. "L+Ctrl", "Control+l" and "CTRL+L"
// all become "ctrl+l".
func NormalizeChord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "+" {
		return s
	}
	parts := strings.Split(s, "+")
	key := ""
	if strings.HasSuffix(s, "++") {
		key = "+"
	}

	var mods []string
	seen := map[string]bool{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if m, ok := modifierAliases[p]; ok {
			if !seen[m] {
				seen[m] = true
				mods = append(mods, m)
			}
			continue
		}
		key = p
	}
	sort.Slice(mods, func(i, j int) bool { return modifierOrder[mods[i]] < modifierOrder[mods[j]] })
	if key == "" {
		return strings.Join(mods, "+")
	}
	return strings.Join(append(mods, key), "+")
}

// ChordFromRune 把控制字符（readline 输入）映射为快捷键；普通字符返回自身
// ChordFromRune maps a control rune from line input to its chord; printable runes map to themselves
func ChordFromRune(r rune) string {
	switch {
	case r >= 1 && r <= 26:
		return "ctrl+" + string(rune('a'+r-1))
	case r == 27:
		return "esc"
	case r == 127:
		return "backspace"
	default:
		return string(r)
	}
}

// Dispatcher 静态绑定的快捷键分发器
// Dispatcher routes chords; only reserved chords are consumed
type Dispatcher struct {
	bindings map[string]Action
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{bindings: map[string]Action{
		ChordClearHistory: ActionClearHistory,
	}}
}

// Resolve returns the action bound to chord.
func (d *Dispatcher) Resolve(chord string) (Action, bool) {
	a, ok := d.bindings[NormalizeChord(chord)]
	return a, ok
}

// OnKey 保留快捷键返回对应动作并被消费；其余快捷键原样交给 passthrough
// OnKey consumes a reserved chord and returns its action; any other chord is
// handed to passthrough unchanged and ActionNone is returned
func (d *Dispatcher) OnKey(chord string, passthrough func(string)) Action {
	if a, ok := d.Resolve(chord); ok {
		return a
	}
	if passthrough != nil {
		passthrough(chord)
	}
	return ActionNone
}

// Bindings lists the reserved chords in a stable order, for help text.
func (d *Dispatcher) Bindings() []string {
	out := make([]string, 0, len(d.bindings))
	for chord := range d.bindings {
		out = append(out, chord)
	}
	sort.Strings(out)
	return out
}
