package transcript

import "time"

// Role 条目的角色
// Role identifies who an entry belongs to
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
	RoleSystem
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Entry 转录中的一条消息；创建后内容不可变
// Entry is one displayed message; its content never changes after creation
type Entry struct {
	Seq       uint64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// ChangeKind 变更类型
// ChangeKind is the kind of a store mutation
type ChangeKind int

const (
	ChangeAppend ChangeKind = iota
	ChangeClear
)

// Change 一次变更，按发生顺序投递给观察者
// Change is one mutation, delivered to observers in mutation order
type Change struct {
	Kind  ChangeKind
	Entry Entry // zero for ChangeClear
}

// Observer 接收变更通知
// Observer receives change notifications
type Observer interface {
	OnChange(Change)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Change)

func (f ObserverFunc) OnChange(c Change) { f(c) }
