// Package event provides a typed, synchronous publish/subscribe primitive.
//
// Emit calls every subscriber in registration order on the caller's
// goroutine. Subscribing returns an unsubscribe func; calling it more than
// once is safe.
package event

import (
	"context"
	"sync"
)

// Handler receives emitted values.
type Handler[T any] func(T)

type subscriber[T any] struct {
	id uint64
	fn Handler[T]
}

// Emitter fans a value out to its subscribers.
type Emitter[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
}

// Subscribe registers fn and returns a func that removes it.
func (e *Emitter[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscriber[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			// copy so an in-progress Emit keeps iterating its own snapshot
			next := make([]subscriber[T], 0, len(e.subs)-1)
			next = append(next, e.subs[:i]...)
			e.subs = append(next, e.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers v to every current subscriber in registration order.
// Subscribers added or removed during Emit take effect on the next call.
func (e *Emitter[T]) Emit(v T) {
	e.mu.RLock()
	subs := e.subs
	e.mu.RUnlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Watch adapts the emitter to a channel that is closed when ctx is done.
// Values are dropped for a slow reader once buffer is full, so Emit never
// blocks on a channel consumer.
func (e *Emitter[T]) Watch(ctx context.Context, buffer int) <-chan T {
	ch := make(chan T, buffer)
	var mu sync.Mutex
	closed := false

	unsubscribe := e.Subscribe(func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- v:
		default:
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}
