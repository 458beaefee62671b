// Package ringlog holds the bounded append-only logs used by both services.
// Once a Ring is full every Push evicts the oldest entry.
package ringlog

// DefaultCapacity is the retention of the event and notification logs.
const DefaultCapacity = 1000

// Ring is a fixed-capacity FIFO buffer. It is not safe for concurrent use;
// callers guard it with their own lock.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest entry
	size int
}

// New returns an empty ring holding at most capacity entries.
// A non-positive capacity falls back to DefaultCapacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// FromSlice builds a ring from items in append order, keeping only the most
// recent capacity entries.
func FromSlice[T any](capacity int, items []T) *Ring[T] {
	r := New[T](capacity)
	if len(items) > len(r.buf) {
		items = items[len(items)-len(r.buf):]
	}
	for _, it := range items {
		r.Push(it)
	}
	return r
}

// Push appends v. When the ring was already full the oldest entry is
// returned together with true.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return evicted, false
	}

	evicted = r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return evicted, true
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Items returns a copy of the retained entries, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.size)
	r.Each(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Each calls fn for every retained entry, oldest first, until fn returns false.
func (r *Ring[T]) Each(fn func(T) bool) {
	for i := 0; i < r.size; i++ {
		if !fn(r.buf[(r.head+i)%len(r.buf)]) {
			return
		}
	}
}
