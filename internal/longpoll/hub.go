// Package longpoll correlates a pending client request with a future event.
//
// A Hub holds at most one live registration per key. A registration resolves
// exactly once: either Signal delivers a payload, or the registration's
// timeout delivers the zero value of T as the "no event" sentinel. Signals
// with no live registration are dropped; there is no buffering, so delivery
// is at-most-once.
package longpoll

import (
	"sync"
	"time"
)

type registration[T any] struct {
	ch    chan T
	timer *time.Timer
	once  sync.Once
}

func (r *registration[T]) deliver(v T) {
	r.once.Do(func() { r.ch <- v })
}

// Hub is a keyed set of single-use long-poll registrations.
type Hub[T any] struct {
	mu      sync.Mutex
	pending map[string]*registration[T]
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{pending: make(map[string]*registration[T])}
}

// Register opens a registration for key and returns a channel that yields
// exactly one value: the signalled payload, or the zero value of T after
// timeout. A second Register for the same key supersedes the first
// (last-register-wins); the superseded registration keeps its own timer and
// still resolves to the sentinel at its original deadline, so the stale
// caller is never left hanging.
func (h *Hub[T]) Register(key string, timeout time.Duration) <-chan T {
	r := &registration[T]{ch: make(chan T, 1)}
	r.timer = time.AfterFunc(timeout, func() { h.expire(key, r) })

	h.mu.Lock()
	h.pending[key] = r
	h.mu.Unlock()
	return r.ch
}

// Signal resolves the live registration for key with payload and clears it.
// Returns false when no registration is live; the payload is dropped.
func (h *Hub[T]) Signal(key string, payload T) bool {
	h.mu.Lock()
	r, ok := h.pending[key]
	if ok {
		delete(h.pending, key)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	r.timer.Stop()
	r.deliver(payload)
	return true
}

// Live reports whether a registration is currently held for key.
func (h *Hub[T]) Live(key string) bool {
	h.mu.Lock()
	_, ok := h.pending[key]
	h.mu.Unlock()
	return ok
}

func (h *Hub[T]) expire(key string, r *registration[T]) {
	h.mu.Lock()
	if h.pending[key] == r {
		delete(h.pending, key)
	}
	h.mu.Unlock()
	var zero T
	r.deliver(zero)
}
