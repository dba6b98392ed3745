package history

// Ring is a fixed-capacity FIFO log. Once full, each Push overwrites the oldest
// item. Ring is not safe for concurrent use; owners guard it.
type Ring[T any] struct {
	items []T
	start int
	count int
}

// NewRing returns a ring holding at most capacity items. A capacity below one is
// treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether the oldest item was evicted to make room.
func (r *Ring[T]) Push(v T) bool {
	capacity := len(r.items)
	if r.count < capacity {
		r.items[(r.start+r.count)%capacity] = v
		r.count++
		return false
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % capacity
	return true
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Items returns a copy of the stored items, oldest first.
func (r *Ring[T]) Items() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// UpdateNewest applies fn to the newest item for which match returns true and
// returns the updated copy. It reports false when no stored item matches, which
// includes items already evicted.
func (r *Ring[T]) UpdateNewest(match func(T) bool, fn func(*T)) (T, bool) {
	for i := r.count - 1; i >= 0; i-- {
		idx := (r.start + i) % len(r.items)
		if match(r.items[idx]) {
			fn(&r.items[idx])
			return r.items[idx], true
		}
	}
	var zero T
	return zero, false
}
