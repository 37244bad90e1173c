package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"vibe/internal/agent"
	"vibe/internal/transcript"
)

// Turn 一次用户提交对应的智能体回合；每次 Step 消费一个事件
// Turn is the agent turn started by one submission; each Step consumes one event
type Turn struct {
	c      *Controller
	stream agent.Stream
	draft  strings.Builder
	done   bool
	err    error
}

// Err returns the stream failure that ended the turn, if any.
func (t *Turn) Err() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.err
}

// Done reports whether the turn has finished.
func (t *Turn) Done() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.done
}

// Step 等待并处理下一个事件；回合结束时返回 true。错误不会逃逸，只会变成提示条目
// Step waits for and applies the next event and reports whether the turn ended.
// Failures never escape; they become notice entries
func (t *Turn) Step(ctx context.Context) bool {
	t.c.mu.Lock()
	if t.done || t.c.turn != t {
		t.done = true
		t.c.mu.Unlock()
		return true
	}
	stream := t.stream
	t.c.mu.Unlock()

	ev, err := stream.Next(ctx)

	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turn != t {
		// a clear superseded this turn; its output is dropped
		t.done = true
		return true
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.transcript.CommitDraft()
			c.finishLocked(t)
			return true
		}
		streamErr := &AgentStreamError{Err: err}
		t.err = streamErr
		c.transcript.DiscardDraft()
		c.finishLocked(t)
		c.transcript.Append(transcript.RoleSystem, streamErr.Error())
		c.logger.Error("agent stream failed", "error", err)
		return true
	}

	switch ev.Kind {
	case agent.EventAssistantDelta:
		t.draft.WriteString(ev.Text)
		c.transcript.SetDraft(transcript.RoleAssistant, t.draft.String())
	case agent.EventToolCall:
		c.transcript.Append(transcript.RoleSystem, formatTool("tool call", ev))
	case agent.EventToolResult:
		c.transcript.Append(transcript.RoleSystem, formatTool("tool result", ev))
	case agent.EventCompletion:
		if t.draft.Len() == 0 && ev.Text != "" {
			c.transcript.SetDraft(transcript.RoleAssistant, ev.Text)
		}
		c.transcript.CommitDraft()
		stream.Stop()
		c.finishLocked(t)
		return true
	}
	return false
}

// Run steps the turn until it ends.
func (t *Turn) Run(ctx context.Context) error {
	for !t.Step(ctx) {
	}
	return t.Err()
}

func formatTool(label string, ev agent.Event) string {
	if ev.Text == "" {
		return fmt.Sprintf("%s: %s", label, ev.Tool)
	}
	return fmt.Sprintf("%s: %s %s", label, ev.Tool, ev.Text)
}
