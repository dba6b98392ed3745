// Package notify provides the observer registry shared by every piece of state the
// link exposes to consumers.
//
// A Hub serializes publication: callbacks for one Hub never run concurrently and
// always run in publish order. Unsubscribing is safe from inside a callback;
// subscribing from inside a callback of the same Hub deadlocks.
package notify

import (
	"sort"
	"sync"
)

// Hub fans a value out to registered observers.
type Hub[T any] struct {
	publishMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(T)
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is idempotent.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	return h.add(fn)
}

// SubscribeWith registers fn and immediately delivers current() to it. Both
// happen while publication is held, so fn never sees a value older than the one
// it was seeded with.
func (h *Hub[T]) SubscribeWith(fn func(T), current func() T) func() {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	cancel := h.add(fn)
	fn(current())
	return cancel
}

// Publish delivers v to every observer registered at the time of the call.
func (h *Hub[T]) Publish(v T) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	h.deliver(v)
}

// Update runs mutate with publication held and publishes its result when mutate
// reports a change. Owners use it to make "mutate then notify" atomic with respect
// to SubscribeWith.
func (h *Hub[T]) Update(mutate func() (T, bool)) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	v, changed := mutate()
	if changed {
		h.deliver(v)
	}
}

// Len reports the number of registered observers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub[T]) add(fn func(T)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[uint64]func(T))
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

func (h *Hub[T]) deliver(v T) {
	h.mu.Lock()
	ids := make([]uint64, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
