package tui

import (
	"strings"

	"vibe/internal/i18n"
	"vibe/internal/transcript"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	return newMarkdown(width).render(content)
}

// markdown caches one glamour renderer per wrap width.
type markdown struct {
	width    int
	renderer *glamour.TermRenderer
}

func newMarkdown(width int) *markdown {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	return &markdown{width: width, renderer: r}
}

func (m *markdown) render(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if m == nil || m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

// renderer 把转录条目渲染成视口文本；已提交的助手条目按 Seq 缓存
// renderer turns transcript entries into viewport text; committed assistant
// entries are cached by Seq
type renderer struct {
	theme  Theme
	locale *i18n.I18n
	md     *markdown
	cache  map[uint64]string
}

func newRenderer(theme Theme, locale *i18n.I18n, width int) *renderer {
	return &renderer{
		theme:  theme,
		locale: locale,
		md:     newMarkdown(width),
		cache:  make(map[uint64]string),
	}
}

func (r *renderer) entry(e transcript.Entry) string {
	switch e.Role {
	case transcript.RoleUser:
		return r.theme.UserStyle.Render("> ") + e.Content
	case transcript.RoleAssistant:
		if out, ok := r.cache[e.Seq]; ok {
			return out
		}
		out := r.theme.AssistantStyle.Render(r.locale.T("role.assistant")) + "\n" + r.md.render(e.Content)
		r.cache[e.Seq] = out
		return out
	default:
		return r.theme.MutedStyle.Render("· " + e.Content)
	}
}

// draft 流式中的草稿按原文显示，提交后才走 markdown
// draft shows streaming text verbatim; markdown is applied once it is committed
func (r *renderer) draft(e transcript.Entry) string {
	return r.theme.AssistantStyle.Render(r.locale.T("role.assistant")) + "\n" + e.Content
}

func (r *renderer) transcript(entries []transcript.Entry, draft *transcript.Entry) string {
	if len(entries) == 0 && draft == nil {
		return r.theme.MutedStyle.Render(r.locale.T("transcript.empty"))
	}
	// drop cached renders of cleared entries
	if len(r.cache) > len(entries) {
		live := make(map[uint64]string, len(r.cache))
		for _, e := range entries {
			if out, ok := r.cache[e.Seq]; ok {
				live[e.Seq] = out
			}
		}
		r.cache = live
	}

	parts := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		parts = append(parts, r.entry(e))
	}
	if draft != nil {
		parts = append(parts, r.draft(*draft))
	}
	return strings.Join(parts, "\n\n")
}
