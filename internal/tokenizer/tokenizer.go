package tokenizer

import (
	"strings"
	"sync"

	"vibe/internal/chat"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter 统计消息 token 数
// Counter counts tokens of chat messages
type Counter interface {
	Count(messages []chat.Message) int
	CountText(text string) int
}

// Tokenizer tiktoken 计数器，BPE 不可用时回退到启发式估算
// Tokenizer counts with tiktoken and falls back to a heuristic when the BPE file is unavailable
type Tokenizer struct {
	encoder  *tiktoken.Tiktoken
	encoding string
	mu       sync.Mutex
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*Tokenizer{}
)

// ForModel 按模型名返回（缓存的）计数器
// ForModel returns a cached tokenizer for the model's encoding
func ForModel(model string) *Tokenizer {
	encoding := modelToEncoding(model)
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if t, ok := cache[encoding]; ok {
		return t
	}
	t := New(encoding)
	cache[encoding] = t
	return t
}

// New 创建 tokenizer；离线环境可能没有 BPE 缓存，此时使用启发式
// New creates a tokenizer; offline environments may lack the BPE cache, in which case the heuristic is used
func New(encoding string) *Tokenizer {
	t := &Tokenizer{encoding: encoding}
	if enc, err := tiktoken.GetEncoding(encoding); err == nil {
		t.encoder = enc
	}
	return t
}

// Heuristic returns a tokenizer that never loads a BPE file.
func Heuristic() *Tokenizer {
	return &Tokenizer{encoding: "heuristic"}
}

// Precise reports whether tiktoken is in use.
func (t *Tokenizer) Precise() bool { return t.encoder != nil }

// Encoding returns the encoding name.
func (t *Tokenizer) Encoding() string { return t.encoding }

// Count returns the total token count of messages.
func (t *Tokenizer) Count(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		total += t.countMessage(msg)
	}
	return total
}

// CountText counts tokens of a single string.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.encoder == nil {
		return heuristicTokenCount(text)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

func (t *Tokenizer) countMessage(msg chat.Message) int {
	// 每条消息约 4 token 结构开销 / ~4 tokens of framing per message
	tokens := 4
	tokens += t.CountText(msg.Content)
	tokens += t.CountText(msg.Role)
	if msg.Name != "" {
		tokens += t.CountText(msg.Name) + 1
	}
	tokens += t.CountText(msg.Reasoning)
	for _, tc := range msg.ToolCalls {
		tokens += t.CountText(tc.Function.Name)
		tokens += t.CountText(tc.Function.Arguments)
		tokens += 8
	}
	return tokens
}

// heuristicTokenCount: CJK ~1.5 token/字, 其余 ~4 chars/token
func heuristicTokenCount(text string) int {
	cjk, other := 0, 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	estimate := int(float64(cjk)*1.5 + float64(other)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"),
		strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "gpt-5"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}
