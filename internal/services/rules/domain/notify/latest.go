package notify

import "sync"

// Latest is a one-slot mailbox that keeps only the newest value. Offer never
// blocks, so it is safe to call from listeners running inside engine calls.
type Latest[T any] struct {
	mu sync.Mutex
	ch chan T
}

// NewLatest returns an empty mailbox.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// Offer replaces any value the receiver has not taken yet.
func (l *Latest[T]) Offer(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
	default:
	}
	l.ch <- v
}

// C returns the receive side of the mailbox.
func (l *Latest[T]) C() <-chan T {
	return l.ch
}
