package agent

import (
	"context"
	"sync"

	"vibe/internal/chat"
	"vibe/internal/config"
)

// Noop 不做推理的替身智能体：记录用户消息，不产生任何事件
// Noop is a stand-in agent: it records user messages and yields no events
type Noop struct {
	mu          sync.Mutex
	initialized bool
	messages    []chat.Message
	stats       Stats
}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Initialize(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.initialized = true
	return nil
}

func (n *Noop) Act(ctx context.Context, userMessage string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.initialized {
		return nil, ErrNotInitialized
	}
	n.messages = append(n.messages, chat.Message{Role: chat.RoleUser, Content: userMessage})
	n.stats.Steps++
	return NewSliceStream(), nil
}

func (n *Noop) ClearHistory(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = nil
	n.stats.ContextTokens = 0
	return nil
}

func (n *Noop) ReloadWithInitialMessages(context.Context, config.Config) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = nil
	n.stats = Stats{}
	n.initialized = true
	return nil
}

func (n *Noop) Messages() []chat.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]chat.Message(nil), n.messages...)
}

func (n *Noop) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}
