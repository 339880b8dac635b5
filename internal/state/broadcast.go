package state

import (
	"context"
	"sync"
)

// Broadcaster fans the latest value of T out to any number of subscribers.
// Each subscriber has a one-slot buffer; publishing replaces a value the
// subscriber has not read yet. The zero Broadcaster holds the zero T.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	latest T
	subs   map[chan T]struct{}

	// Clone, when set, copies values before they are handed to a subscriber.
	Clone func(T) T
}

// NewBroadcaster returns a Broadcaster whose current value is initial.
func NewBroadcaster[T any](initial T, clone func(T) T) *Broadcaster[T] {
	return &Broadcaster[T]{latest: initial, Clone: clone}
}

// Latest returns the most recently published value.
func (b *Broadcaster[T]) Latest() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copy(b.latest)
}

// Publish records v as the current value and offers it to every subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = v
	for ch := range b.subs {
		offer(ch, b.copy(v))
	}
}

// Subscribe returns a channel that yields the current value immediately and
// then every later publication. The channel is closed once ctx is done.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[chan T]struct{})
	}
	b.subs[ch] = struct{}{}
	ch <- b.copy(b.latest)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Subscribers reports how many subscriptions are open.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster[T]) copy(v T) T {
	if b.Clone == nil {
		return v
	}
	return b.Clone(v)
}

// offer replaces any unread value in ch with v. Only Publish sends, and it
// holds the broadcaster lock, so the send after draining cannot block.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
