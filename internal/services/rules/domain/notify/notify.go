// Package notify delivers configuration snapshots to per-configuration
// subscribers.
package notify

import (
	"log"
	"sync"
)

// Subscription is a registered listener. Release it with Unsubscribe when
// the consumer tears down.
type Subscription struct {
	once   sync.Once
	done   chan struct{}
	remove func()
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.remove != nil {
			s.remove()
		}
		close(s.done)
	})
}

// Done is closed once the subscription has ended, either through
// Unsubscribe or because its configuration was disposed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type entry[T any] struct {
	sub      *Subscription
	listener func(T)
}

// Notifier fans snapshots out to listeners keyed by configuration id.
// Listeners run synchronously in registration order.
type Notifier[T any] struct {
	mu     sync.Mutex
	topics map[string][]*entry[T]
	logf   func(string, ...any)
}

// New creates a notifier. A nil logf uses log.Printf.
func New[T any](logf func(string, ...any)) *Notifier[T] {
	if logf == nil {
		logf = log.Printf
	}
	return &Notifier[T]{
		topics: make(map[string][]*entry[T]),
		logf:   logf,
	}
}

// Subscribe registers listener for gameID.
func (n *Notifier[T]) Subscribe(gameID string, listener func(T)) *Subscription {
	sub := &Subscription{done: make(chan struct{})}
	e := &entry[T]{sub: sub, listener: listener}
	sub.remove = func() { n.remove(gameID, e) }

	n.mu.Lock()
	n.topics[gameID] = append(n.topics[gameID], e)
	n.mu.Unlock()
	return sub
}

// Publish invokes every listener of gameID once with snapshot and reports
// how many listeners ran. A panicking listener is logged and skipped.
func (n *Notifier[T]) Publish(gameID string, snapshot T) int {
	n.mu.Lock()
	entries := append([]*entry[T](nil), n.topics[gameID]...)
	n.mu.Unlock()

	delivered := 0
	for _, e := range entries {
		if e.sub.ended() {
			continue
		}
		n.deliver(gameID, e, snapshot)
		delivered++
	}
	return delivered
}

// Close ends every subscription of gameID.
func (n *Notifier[T]) Close(gameID string) {
	n.mu.Lock()
	entries := n.topics[gameID]
	delete(n.topics, gameID)
	n.mu.Unlock()

	for _, e := range entries {
		e.sub.Unsubscribe()
	}
}

// Count returns the number of live subscriptions for gameID.
func (n *Notifier[T]) Count(gameID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.topics[gameID])
}

func (n *Notifier[T]) deliver(gameID string, e *entry[T], snapshot T) {
	defer func() {
		if r := recover(); r != nil {
			n.logf("configuration %s listener panicked: %v", gameID, r)
		}
	}()
	e.listener(snapshot)
}

func (n *Notifier[T]) remove(gameID string, target *entry[T]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entries := n.topics[gameID]
	for i, e := range entries {
		if e == target {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(n.topics, gameID)
		return
	}
	n.topics[gameID] = entries
}
