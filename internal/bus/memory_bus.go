// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/camcore/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 64

var ErrClosed = errors.New("bus: closed")

// MemoryBus is an in-process pub/sub. Delivery is best-effort: a subscriber
// whose buffer is full misses the message.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	buffer int
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(DefaultBuffer)
}

func NewMemoryBusWithBuffer(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{subs: make(map[string][]*memorySub), buffer: buffer}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	subs := b.subs[topic]
	if len(subs) == 0 {
		metrics.IncBusDropReason(topic, "no_subscriber")
		return ErrUndelivered
	}
	delivered := false
	for _, s := range subs {
		select {
		case s.ch <- msg:
			delivered = true
		default:
			// drop on backpressure to avoid producer blockage
			metrics.IncBusDrop(topic)
		}
	}
	if !delivered {
		return ErrUndelivered
	}
	metrics.IncBusPublished(topic)
	return nil
}

// Subscribe registers a subscriber on topic. The subscription ends when ctx is
// done or Close is called.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	s := &memorySub{bus: b, topic: topic, ch: make(chan Message, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	s.stop = context.AfterFunc(ctx, func() { _ = s.Close() })
	return s, nil
}

// Close unsubscribes everyone and rejects further use.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*memorySub
	for _, lst := range b.subs {
		all = append(all, lst...)
	}
	b.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
}

func (b *MemoryBus) remove(s *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lst := b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(b.subs, s.topic)
	} else {
		b.subs[s.topic] = out
	}
	// channel is closed under the write lock so no publisher can be mid-send
	close(s.ch)
}

type memorySub struct {
	bus   *MemoryBus
	topic string
	ch    chan Message
	once  sync.Once
	stop  func() bool
}

func (s *memorySub) C() <-chan Message { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.bus.remove(s)
	})
	return nil
}
