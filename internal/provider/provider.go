// Package provider streams chat completions from a model backend.
package provider

import (
	"context"

	"vibe/internal/chat"
)

// ChatRequest is the conversation sent for one turn.
type ChatRequest struct {
	Messages []chat.Message
}

// StreamCallbacks 在流式响应中按到达顺序被调用；工具调用在流结束时一次性给出
// StreamCallbacks fire in arrival order; tool calls are reported once the stream ends
type StreamCallbacks struct {
	OnTextChunk func(chunk string)
	OnToolCall  func(call chat.ToolCall)
}

// Usage is the token accounting of one turn.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse 一个回合的完整结果
// ChatResponse is the assembled result of one turn
type ChatResponse struct {
	Content   string
	Reasoning string
	ToolCalls []chat.ToolCall
	Usage     Usage
}

// Provider is what the agent needs from a backend.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest, cb *StreamCallbacks) (ChatResponse, error)
	CurrentModel() string
}
