package transcript

import (
	"iter"
	"strings"
	"sync"
	"time"
)

// Store 有序的转录条目日志，支持追加、清空与快照查询
// Store is the ordered log of displayed entries with append, clear and snapshot queries
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	draft   *Entry
	nextSeq uint64

	// notifyMu keeps observer delivery in mutation order.
	notifyMu  sync.Mutex
	observers []Observer
	now       func() time.Time
}

// Option 配置 Store
// Option configures a Store
type Option func(*Store)

// WithObserver 注册变更观察者；观察者不得在回调中修改 Store
// WithObserver registers a change observer; observers must not mutate the store from the callback
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New 创建空的 Store
// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{nextSeq: 1, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tx 在单个写锁内执行的一组变更
// Tx is a group of mutations applied under a single write lock
type Tx struct {
	s       *Store
	changes []Change
}

// Append adds an entry at the end of the transcript.
func (tx *Tx) Append(role Role, content string) Entry {
	e := tx.s.appendLocked(role, content)
	tx.changes = append(tx.changes, Change{Kind: ChangeAppend, Entry: e})
	return e
}

// Clear removes every committed entry and any draft.
func (tx *Tx) Clear() {
	tx.s.entries = nil
	tx.s.draft = nil
	tx.changes = append(tx.changes, Change{Kind: ChangeClear})
}

// Len reports the number of committed entries inside the transaction.
func (tx *Tx) Len() int { return len(tx.s.entries) }

// Update 原子地执行 fn 中的全部变更：读者只会看到执行前或执行后的状态
// Update applies every mutation in fn atomically: readers see either the state before or after
func (s *Store) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	tx := &Tx{s: s}
	fn(tx)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.deliver(tx.changes)
}

// Append 追加一条条目，返回后对所有读者可见
// Append adds an entry; it is visible to every reader once the call returns
func (s *Store) Append(role Role, content string) Entry {
	var e Entry
	s.Update(func(tx *Tx) { e = tx.Append(role, content) })
	return e
}

// Clear 原子地移除所有条目
// Clear removes all entries atomically
func (s *Store) Clear() {
	s.Update(func(tx *Tx) { tx.Clear() })
}

// Len returns the number of committed entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries 返回已提交条目的副本
// Entries returns a copy of the committed entries
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Query 返回满足 pred 的条目序列；快照在调用时获取，序列可重复遍历
// Query returns the entries matching pred; the snapshot is taken at call time and the sequence is restartable
func (s *Store) Query(pred func(Entry) bool) iter.Seq[Entry] {
	snapshot := s.Entries()
	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if pred != nil && !pred(e) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// SetDraft 设置或替换进行中的条目（流式输出）
// SetDraft sets or replaces the in-progress entry used while streaming
func (s *Store) SetDraft(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = &Entry{Role: role, Content: content, CreatedAt: s.now()}
}

// Draft returns the in-progress entry, if any.
func (s *Store) Draft() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return Entry{}, false
	}
	return *s.draft, true
}

// CommitDraft 把进行中的条目提交为正式条目
// CommitDraft turns the in-progress entry into a committed one
func (s *Store) CommitDraft() (Entry, bool) {
	var (
		e  Entry
		ok bool
	)
	s.Update(func(tx *Tx) {
		d := s.draft
		s.draft = nil
		if d == nil || d.Content == "" {
			return
		}
		e, ok = tx.Append(d.Role, d.Content), true
	})
	return e, ok
}

// DiscardDraft drops the in-progress entry without committing it.
func (s *Store) DiscardDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

func (s *Store) appendLocked(role Role, content string) Entry {
	e := Entry{
		Seq:       s.nextSeq,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.nextSeq++
	s.entries = append(s.entries, e)
	return e
}

func (s *Store) deliver(changes []Change) {
	if len(s.observers) == 0 {
		return
	}
	for _, c := range changes {
		for _, o := range s.observers {
			o.OnChange(c)
		}
	}
}

// ByRole matches entries with the given role.
func ByRole(role Role) func(Entry) bool {
	return func(e Entry) bool { return e.Role == role }
}

// Contains matches entries whose content contains substr.
func Contains(substr string) func(Entry) bool {
	return func(e Entry) bool { return strings.Contains(e.Content, substr) }
}

// All 组合多个条件（全部满足）
// All combines predicates; every one must match
func All(preds ...func(Entry) bool) func(Entry) bool {
	return func(e Entry) bool {
		for _, p := range preds {
			if p != nil && !p(e) {
				return false
			}
		}
		return true
	}
}

// Count 统计序列中的条目数
// Count returns the number of entries in seq
func Count(seq iter.Seq[Entry]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}
