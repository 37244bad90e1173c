package agent

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vibe/internal/chat"
	"vibe/internal/config"
	"vibe/internal/provider"
	"vibe/internal/tokenizer"
)

// ProviderFactory builds a provider from the provider section of the config.
type ProviderFactory func(cfg config.ProviderConfig) provider.Provider

// OpenAIFactory 默认的 go-openai provider 构造
// OpenAIFactory is the default go-openai backed factory
func OpenAIFactory(cfg config.ProviderConfig) provider.Provider {
	return provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		TimeoutMS:  cfg.TimeoutMS,
		MaxRetries: 2,
	})
}

// LLM 基于模型 provider 的真实智能体
// LLM is the real agent backed by a model provider
type LLM struct {
	mu          sync.Mutex
	cfg         config.Config
	factory     ProviderFactory
	provider    provider.Provider
	counter     tokenizer.Counter
	messages    []chat.Message
	stats       Stats
	initialized bool
	// generation 在清空/重载时递增，旧回合的结果不再写回历史
	// generation bumps on clear/reload so results of older turns are not written back
	generation uint64
}

// LLMOption configures an LLM agent.
type LLMOption func(*LLM)

// WithProviderFactory overrides how providers are built on Initialize and reload.
func WithProviderFactory(f ProviderFactory) LLMOption {
	return func(l *LLM) {
		if f != nil {
			l.factory = f
		}
	}
}

// WithCounter overrides the token counter.
func WithCounter(c tokenizer.Counter) LLMOption {
	return func(l *LLM) { l.counter = c }
}

func NewLLM(cfg config.Config, opts ...LLMOption) *LLM {
	l := &LLM{cfg: cfg, factory: OpenAIFactory}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LLM) Initialize(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetLocked(l.cfg)
}

func (l *LLM) resetLocked(cfg config.Config) error {
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		return errors.New("provider.model is empty")
	}
	if strings.TrimSpace(cfg.Provider.BaseURL) == "" {
		return errors.New("provider.base_url is empty")
	}
	l.cfg = cfg
	l.provider = l.factory(cfg.Provider)
	if l.counter == nil {
		l.counter = tokenizer.ForModel(cfg.Provider.Model)
	}
	l.messages = l.initialMessages()
	l.stats = Stats{ContextTokens: l.counter.Count(l.messages)}
	l.generation++
	l.initialized = true
	return nil
}

func (l *LLM) initialMessages() []chat.Message {
	prompt := strings.TrimSpace(l.cfg.Runtime.SystemPrompt)
	if prompt == "" {
		return nil
	}
	return []chat.Message{{Role: chat.RoleSystem, Content: prompt}}
}

func (l *LLM) Act(ctx context.Context, userMessage string) (Stream, error) {
	l.mu.Lock()
	if !l.initialized {
		l.mu.Unlock()
		return nil, ErrNotInitialized
	}
	// the user message joins the history only once the turn succeeds
	history := append(append([]chat.Message(nil), l.messages...), chat.Message{Role: chat.RoleUser, Content: userMessage})
	gen := l.generation
	p := l.provider
	l.mu.Unlock()

	return NewChanStream(ctx, func(ctx context.Context, emit func(Event) error) error {
		var emitErr error
		keep := func(err error) {
			if err != nil && emitErr == nil {
				emitErr = err
			}
		}
		resp, err := p.Chat(ctx, provider.ChatRequest{Messages: history}, &provider.StreamCallbacks{
			OnTextChunk: func(chunk string) { keep(emit(Delta(chunk))) },
			OnToolCall: func(call chat.ToolCall) {
				keep(emit(ToolCall(call.Function.Name, call.Function.Arguments)))
			},
		})
		if err != nil {
			return err
		}
		if emitErr != nil {
			return emitErr
		}
		l.recordTurn(gen, userMessage, resp)
		return emit(Completion(resp.Content))
	}), nil
}

func (l *LLM) recordTurn(gen uint64, userMessage string, resp provider.ChatResponse) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		return
	}
	l.messages = append(l.messages, chat.Message{Role: chat.RoleUser, Content: userMessage})
	// 工具调用只作为事件展示，不写入历史（未执行的调用会让下一次请求无效）
	// Tool calls are surfaced as events only; unexecuted calls would invalidate the next request
	if resp.Content != "" {
		l.messages = append(l.messages, chat.Message{
			Role:      chat.RoleAssistant,
			Content:   resp.Content,
			Reasoning: resp.Reasoning,
		})
	}
	l.stats.Steps++
	l.stats.SessionPromptTokens += resp.Usage.PromptTokens
	l.stats.SessionCompletionTokens += resp.Usage.CompletionTokens
	l.stats.SessionTotalTokens += resp.Usage.TotalTokens
	l.stats.LastTurnTotalTokens = resp.Usage.TotalTokens
	l.stats.SessionCost += (float64(resp.Usage.PromptTokens)*l.cfg.Provider.InputPrice +
		float64(resp.Usage.CompletionTokens)*l.cfg.Provider.OutputPrice) / 1e6
	l.stats.ContextTokens = l.counter.Count(l.messages)
}

func (l *LLM) ClearHistory(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.initialMessages()
	l.generation++
	if l.counter != nil {
		l.stats.ContextTokens = l.counter.Count(l.messages)
	}
	return nil
}

func (l *LLM) ReloadWithInitialMessages(_ context.Context, cfg config.Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetLocked(cfg)
}

func (l *LLM) Messages() []chat.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]chat.Message(nil), l.messages...)
}

func (l *LLM) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Model returns the active model name.
func (l *LLM) Model() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.provider != nil {
		return l.provider.CurrentModel()
	}
	return l.cfg.Provider.Model
}
