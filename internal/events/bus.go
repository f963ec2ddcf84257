// Package events fans locomotive events out to subscribers on the caller's
// goroutine.
package events

import (
	"log/slog"
	"sync"

	"github.com/RogersSierra/extension/pkg/core"
)

// Handler receives one event. It runs inside the tick that produced it and
// must not block.
type Handler func(core.Event)

type subscriber struct {
	id      uint64
	comment string
	fn      Handler
}

// Bus is a synchronous publish/subscribe multiplexer.
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers []subscriber
	logger      *slog.Logger
}

// NewBus creates an empty bus. A nil logger discards subscriber failures.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn and returns a function that removes it again.
// comment names the subscriber in logs.
func (b *Bus) Subscribe(comment string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber{id: id, comment: comment, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers e to every subscriber in subscription order. A panicking
// subscriber is logged and skipped so the others still see the event.
func (b *Bus) Publish(e core.Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, e)
	}
}

func (b *Bus) deliver(sub subscriber, e core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				"subscriber", sub.comment,
				"event", e.Kind,
				"panic", r)
		}
	}()
	sub.fn(e)
}
