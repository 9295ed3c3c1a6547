package app

// ring is a bounded append-only history buffer. Once full, the oldest entry
// falls off. Not goroutine-safe; callers hold their own lock.
type ring[T any] struct {
	limit int
	items []T
}

func newRing[T any](limit int) *ring[T] {
	if limit <= 0 {
		limit = 1
	}
	return &ring[T]{limit: limit}
}

func (r *ring[T]) push(v T) {
	r.items = append(r.items, v)
	if len(r.items) > r.limit {
		// Copy down instead of reslicing so the backing array stops
		// pinning evicted entries.
		copy(r.items, r.items[1:])
		r.items = r.items[:r.limit]
	}
}

// snapshot returns a copy, oldest first.
func (r *ring[T]) snapshot() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

func (r *ring[T]) len() int {
	return len(r.items)
}

func (r *ring[T]) last() (T, bool) {
	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	return r.items[len(r.items)-1], true
}
