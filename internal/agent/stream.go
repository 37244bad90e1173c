package agent

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Stream 可取消的事件迭代器；结束时 Next 返回 io.EOF
// Stream is a cancellable event iterator; Next returns io.EOF at the end
type Stream interface {
	Next(ctx context.Context) (Event, error)
	// Stop 通知生产方停止；可重复调用
	// Stop tells the producer to stop; safe to call more than once
	Stop()
}

// SliceStream 预先确定的有限事件流
// SliceStream is a finite, precomputed stream
type SliceStream struct {
	mu      sync.Mutex
	events  []Event
	pos     int
	stopped bool
}

func NewSliceStream(events ...Event) *SliceStream {
	return &SliceStream{events: append([]Event(nil), events...)}
}

func (s *SliceStream) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

func (s *SliceStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Producer 在独立 goroutine 中产生事件；emit 在消费方停止后返回错误
// Producer generates events on its own goroutine; emit fails once the consumer stopped
type Producer func(ctx context.Context, emit func(Event) error) error

// ChanStream 由后台 producer 驱动的事件流，按产生顺序交付
// ChanStream is backed by a producer goroutine and delivers events in production order
type ChanStream struct {
	events  chan Event
	done    chan struct{}
	cancel  context.CancelFunc
	stopped atomic.Bool
	err     error
}

func NewChanStream(parent context.Context, produce Producer) *ChanStream {
	ctx, cancel := context.WithCancel(parent)
	s := &ChanStream{
		events: make(chan Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(s.done)
		defer cancel()
		s.err = produce(ctx, func(e Event) error {
			select {
			case s.events <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

func (s *ChanStream) Next(ctx context.Context) (Event, error) {
	if s.stopped.Load() {
		return Event{}, io.EOF
	}
	select {
	case e := <-s.events:
		if s.stopped.Load() {
			// Stop raced the producer's last send
			return Event{}, io.EOF
		}
		return e, nil
	case <-s.done:
		if s.err != nil && !s.stopped.Load() {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *ChanStream) Stop() {
	s.stopped.Store(true)
	s.cancel()
}

// Wait blocks until the producer returned.
func (s *ChanStream) Wait() {
	<-s.done
}
