package session

import "errors"

var (
	// ErrBusy 清空或流式输出进行中时拒绝新的请求
	// ErrBusy rejects a request while a clear or a streaming turn is in flight
	ErrBusy = errors.New("session is busy")
	// ErrBlocked 智能体初始化失败后会话不可用
	// ErrBlocked is returned once agent initialization failed
	ErrBlocked = errors.New("session is blocked by an initialization failure")
)

// AgentInitializationError 智能体初始化失败
// AgentInitializationError reports that the agent could not be initialized
type AgentInitializationError struct {
	Err error
}

func (e *AgentInitializationError) Error() string {
	return "agent initialization failed: " + e.Err.Error()
}

func (e *AgentInitializationError) Unwrap() error { return e.Err }

// AgentStreamError 回合中途失败
// AgentStreamError reports a failure in the middle of a turn
type AgentStreamError struct {
	Err error
}

func (e *AgentStreamError) Error() string {
	return "agent stream failed: " + e.Err.Error()
}

func (e *AgentStreamError) Unwrap() error { return e.Err }

// ClearHistoryError 智能体清空记忆失败；转录保持不变
// ClearHistoryError reports that the agent could not clear its memory; the transcript is left intact
type ClearHistoryError struct {
	Err error
}

func (e *ClearHistoryError) Error() string {
	return "clear history failed: " + e.Err.Error()
}

func (e *ClearHistoryError) Unwrap() error { return e.Err }
