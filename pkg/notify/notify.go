package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Next after the subscription has been closed
// and its buffer drained.
var ErrClosed = errors.New("subscription closed")

// Cloner is satisfied by types that can produce an independent copy of
// themselves. Clone must copy any mutable internals (slices, maps) so
// that mutating the copy never alters the original.
type Cloner[T any] interface {
	Clone() T
}

// Value is an observable holder of a snapshot of type T. Published
// snapshots are shared between subscribers and must be treated as
// read-only; Clone one before mutating.
type Value[T Cloner[T]] struct {
	mu      sync.Mutex
	current T
	subs    map[uint64]*Subscription[T]
	nextID  uint64
}

// NewValue creates a Value holding initial as its first snapshot.
func NewValue[T Cloner[T]](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[uint64]*Subscription[T]),
	}
}

// Get returns the current snapshot. The result is shared; Clone it
// before mutating.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the snapshot and publishes it to all subscriptions.
// Ownership of next passes to the Value; the caller must not mutate it
// afterwards.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = next
	for _, sub := range v.subs {
		sub.push(next)
	}
}

// Update derives a fresh snapshot by cloning the current one, applying
// fn, and publishing fn's result. It returns the new snapshot. The
// clone-then-replace discipline keeps previously returned snapshots
// untouched.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current.Clone())
	for _, sub := range v.subs {
		sub.push(v.current)
	}
	return v.current
}

// Subscribe registers a new subscription primed with the current
// snapshot.
func (v *Value[T]) Subscribe() *Subscription[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	sub := &Subscription[T]{
		value: v,
		id:    v.nextID,
		ch:    make(chan T, 1),
		done:  make(chan struct{}),
	}
	v.subs[sub.id] = sub
	sub.push(v.current)
	return sub
}

// unsubscribe detaches sub so no further snapshots reach it.
func (v *Value[T]) unsubscribe(id uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.subs, id)
}

// Subscription is one consumer's view of a Value. It buffers a single
// pending snapshot; publishing over an undelivered snapshot replaces
// it.
type Subscription[T Cloner[T]] struct {
	value     *Value[T]
	id        uint64
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

// push delivers a snapshot, displacing any undelivered one. Callers
// hold the Value mutex, so there is never more than one concurrent
// push.
func (s *Subscription[T]) push(snapshot T) {
	for {
		select {
		case s.ch <- snapshot:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Changes exposes the delivery channel for use in select statements.
// Values read from it are shared snapshots; Clone before mutating.
func (s *Subscription[T]) Changes() <-chan T {
	return s.ch
}

// Next blocks until a snapshot is available, the subscription is
// closed, or ctx is done. A snapshot buffered before Close is still
// delivered.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case snapshot := <-s.ch:
		return snapshot, nil
	default:
	}
	select {
	case snapshot := <-s.ch:
		return snapshot, nil
	case <-s.done:
		select {
		case snapshot := <-s.ch:
			return snapshot, nil
		default:
		}
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close detaches the subscription from its Value. Idempotent.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() {
		s.value.unsubscribe(s.id)
		close(s.done)
	})
}
