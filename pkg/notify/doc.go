// Package notify implements an observable value with copy-on-write
// snapshots and coalescing subscriptions.
//
// A Value[T] holds the latest snapshot of some state. Writers replace
// the snapshot atomically with Set or Update; readers take it with Get
// or follow changes with Subscribe. Snapshots are never mutated after
// publication, so readers may hold them without locking. The Cloner
// constraint gives Update (and any caller that wants a private copy)
// a way to derive a fresh mutable snapshot from the current one.
//
// # Coalescing Behavior
//
// Each subscription buffers exactly one pending snapshot. When a new
// snapshot is published while one is still pending, the pending one is
// replaced: a slow consumer skips intermediate states and always
// observes the latest. A consumer that keeps up sees every update.
//
// # Priming
//
// Subscribe delivers the current snapshot immediately, so a consumer
// never has to wait for the first change to learn the state.
//
// # Lifecycle
//
// Closing a subscription detaches it from the Value; Next then returns
// ErrClosed after any already-buffered snapshot is drained. Closing is
// idempotent and safe from any goroutine.
package notify
