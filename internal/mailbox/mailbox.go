// Package mailbox provides a typed one-shot handoff between a single producer
// goroutine and a single consumer loop.
//
// The consumer never blocks: it checks Empty or calls TryTake from its own
// scheduled tick and re-arms the tick when nothing has arrived yet.
package mailbox

import "context"

// Mailbox carries at most one value from a producer to a consumer.
type Mailbox[T any] struct {
	ch chan T
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Put deposits v without blocking. It reports false and drops v when a value
// is already waiting to be taken.
func (m *Mailbox[T]) Put(v T) bool {
	select {
	case m.ch <- v:
		return true
	default:
		return false
	}
}

// Empty reports whether no value is waiting.
func (m *Mailbox[T]) Empty() bool {
	return len(m.ch) == 0
}

// TryTake consumes the waiting value, if any.
func (m *Mailbox[T]) TryTake() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Wait blocks until a value arrives or ctx is done. Command-line callers
// that have no event loop use it in place of a polling tick.
func (m *Mailbox[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-m.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
