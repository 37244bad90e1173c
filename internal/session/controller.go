// Package session drives one chat session: it owns the transcript, talks to
// the agent and runs the clear-history state machine.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"vibe/internal/agent"
	"vibe/internal/config"
	"vibe/internal/observability"
	"vibe/internal/transcript"
)

// ClearedNotice 清空成功后唯一保留的条目内容
// ClearedNotice is the content of the single entry left after a successful clear
const ClearedNotice = "Conversation history cleared!"

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateClearing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateClearing:
		return "clearing"
	default:
		return "unknown"
	}
}

// Controller 会话控制器；状态机由 mu 串行化，调用智能体时从不持锁
// Controller serializes its state machine with mu and never holds it across an agent call
type Controller struct {
	mu         sync.Mutex
	agent      agent.Session
	cfg        config.Config
	transcript *transcript.Store
	logger     *slog.Logger

	state   State
	turn    *Turn
	blocked error
	// acting is open while Submit waits on agent.Act; Clear waits for it so
	// the agent never records a pre-clear message after ClearHistory
	acting chan struct{}
}

type Option func(*Controller)

// WithLogger overrides the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTranscript 使用外部构造的 Store（例如挂了会话日志观察者）
// WithTranscript uses an externally built store, e.g. one with a session log observer
func WithTranscript(s *transcript.Store) Option {
	return func(c *Controller) {
		if s != nil {
			c.transcript = s
		}
	}
}

func New(a agent.Session, cfg config.Config, opts ...Option) *Controller {
	c := &Controller{
		agent: a,
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transcript == nil {
		c.transcript = transcript.New()
	}
	if c.logger == nil {
		c.logger = observability.WithFields("component", "session")
	}
	return c
}

func (c *Controller) Transcript() *transcript.Store { return c.transcript }

func (c *Controller) Agent() agent.Session { return c.agent }

func (c *Controller) Config() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Blocked 返回初始化失败的错误；未阻塞时为 nil
// Blocked returns the initialization failure, or nil when the session is usable
func (c *Controller) Blocked() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

func (c *Controller) Initialize(ctx context.Context) error {
	err := c.agent.Initialize(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		initErr := &AgentInitializationError{Err: err}
		c.blocked = initErr
		c.transcript.Append(transcript.RoleSystem, initErr.Error())
		c.logger.Error("agent initialization failed", "error", err)
		return initErr
	}
	c.blocked = nil
	c.logger.Info("agent initialized")
	return nil
}

// Append 由宿主挂载一条消息
// Append mounts a message on behalf of the host
func (c *Controller) Append(role transcript.Role, content string) transcript.Entry {
	return c.transcript.Append(role, content)
}

// Submit 追加用户条目并开始一个回合
// Submit appends the user entry and starts a turn
func (c *Controller) Submit(ctx context.Context, text string) (*Turn, error) {
	c.mu.Lock()
	if c.blocked != nil {
		c.mu.Unlock()
		return nil, ErrBlocked
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.transcript.Append(transcript.RoleUser, text)
	t := &Turn{c: c}
	c.turn = t
	c.state = StateStreaming
	acting := make(chan struct{})
	c.acting = acting
	c.mu.Unlock()

	stream, err := c.agent.Act(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acting = nil
	close(acting)
	if c.turn != t {
		// superseded by a clear while Act was running
		if stream != nil {
			stream.Stop()
		}
		t.done = true
		return t, nil
	}
	if err != nil {
		streamErr := &AgentStreamError{Err: err}
		t.err = streamErr
		c.finishLocked(t)
		c.transcript.Append(transcript.RoleSystem, streamErr.Error())
		c.logger.Error("agent act failed", "error", err)
		return nil, streamErr
	}
	t.stream = stream
	return t, nil
}

// Interrupt 停止正在进行的回合；已输出的部分保留
// Interrupt stops the active turn; output received so far is kept
func (c *Controller) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turn != nil && c.turn.stream != nil {
		c.turn.stream.Stop()
	}
}

// Clear 清空会话历史：先等待智能体清空记忆，再原子地重置转录
// Clear wipes the session history: it awaits the agent, then resets the transcript atomically
func (c *Controller) Clear(ctx context.Context) error {
	c.mu.Lock()
	if c.blocked != nil {
		c.mu.Unlock()
		return ErrBlocked
	}
	if c.state == StateClearing {
		c.mu.Unlock()
		return ErrBusy
	}
	if t := c.turn; t != nil {
		if t.stream != nil {
			t.stream.Stop()
		}
		t.done = true
		c.turn = nil
	}
	c.state = StateClearing
	acting := c.acting
	c.mu.Unlock()

	var err error
	if acting != nil {
		select {
		case <-acting:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err == nil {
		err = c.agent.ClearHistory(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	if err != nil {
		clearErr := &ClearHistoryError{Err: err}
		// the stopped turn's partial reply stays as a regular entry
		c.transcript.CommitDraft()
		c.transcript.Append(transcript.RoleSystem, clearErr.Error())
		c.logger.Error("clear history failed", "error", err)
		return clearErr
	}
	var dropped int
	c.transcript.Update(func(tx *transcript.Tx) {
		dropped = tx.Len()
		tx.Clear()
		tx.Append(transcript.RoleUser, ClearedNotice)
	})
	c.logger.Info("history cleared", "dropped_entries", dropped)
	return nil
}

// Reload 以新配置重新初始化同一个智能体实例
// Reload re-initializes the same agent instance against a new configuration
func (c *Controller) Reload(ctx context.Context, cfg config.Config) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	if err := c.agent.ReloadWithInitialMessages(ctx, cfg); err != nil {
		return fmt.Errorf("reload agent: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.blocked = nil
	c.logger.Info("agent reloaded", "model", cfg.Provider.Model)
	return nil
}

func (c *Controller) finishLocked(t *Turn) {
	t.done = true
	if c.turn == t {
		c.turn = nil
		c.state = StateIdle
	}
}
