package eventstore

// ring is a fixed-capacity buffer that evicts the oldest item on overflow.
type ring[T any] struct {
	items []T
	head  int // index of the next write
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

func (r *ring[T]) len() int { return r.size }

func (r *ring[T]) clamp() {
	if r.size > len(r.items) {
		r.size = len(r.items)
	}
}

// newestFirst copies the contents, index 0 being the most recent push.
func (r *ring[T]) newestFirst() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		idx := (r.head - 1 - i + len(r.items)) % len(r.items)
		out[i] = r.items[idx]
	}
	return out
}
