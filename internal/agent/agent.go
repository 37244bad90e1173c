// Package agent defines the contract every chat agent satisfies and ships
// the two implementations the app uses: an LLM-backed agent and a no-op
// stand-in.
package agent

import (
	"context"
	"errors"

	"vibe/internal/chat"
	"vibe/internal/config"
)

// ErrNotInitialized is returned by Act before Initialize succeeded.
var ErrNotInitialized = errors.New("agent is not initialized")

// Session 智能体会话契约
// Session is the capability set any agent implementation provides
type Session interface {
	// Initialize 在第一次 Act 之前调用且仅调用一次
	// Initialize is called exactly once before the first Act
	Initialize(ctx context.Context) error

	// Act 针对一条用户消息产生惰性事件流；流可以为空
	// Act produces a lazy event stream for one user message; the stream may be empty
	Act(ctx context.Context, userMessage string) (Stream, error)

	// ClearHistory 丢弃内部对话记忆；空历史不报错，返回时已清空
	// ClearHistory discards conversational memory; empty history is not an error and nothing remains on return
	ClearHistory(ctx context.Context) error

	// ReloadWithInitialMessages 以新配置重新初始化，保持同一实例
	// ReloadWithInitialMessages re-initializes against cfg while keeping the same instance
	ReloadWithInitialMessages(ctx context.Context, cfg config.Config) error

	// Messages 返回累积的消息历史副本
	// Messages returns a copy of the accumulated history
	Messages() []chat.Message

	Stats() Stats
}

// Stats 会话统计（token / 步数 / 花费）
// Stats reports token, step and cost accounting for a session
type Stats struct {
	ContextTokens           int
	Steps                   int
	SessionPromptTokens     int
	SessionCompletionTokens int
	SessionTotalTokens      int
	LastTurnTotalTokens     int
	SessionCost             float64
}

// EventKind 事件类型
// EventKind classifies stream events
type EventKind int

const (
	EventAssistantDelta EventKind = iota
	EventToolCall
	EventToolResult
	EventCompletion
)

func (k EventKind) String() string {
	switch k {
	case EventAssistantDelta:
		return "assistant_delta"
	case EventToolCall:
		return "tool_call"
	case EventToolResult:
		return "tool_result"
	case EventCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// Event 事件流中的一项
// Event is one item of an Act stream
type Event struct {
	Kind EventKind
	Text string
	Tool string
}

func Delta(text string) Event      { return Event{Kind: EventAssistantDelta, Text: text} }
func Completion(text string) Event { return Event{Kind: EventCompletion, Text: text} }

func ToolCall(name, args string) Event {
	return Event{Kind: EventToolCall, Tool: name, Text: args}
}

func ToolResult(name, result string) Event {
	return Event{Kind: EventToolResult, Tool: name, Text: result}
}
