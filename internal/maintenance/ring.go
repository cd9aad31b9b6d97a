package maintenance

// Ring is a fixed-capacity history of run durations in milliseconds.
// Logical index 0 is always the oldest surviving sample. Once full, a push
// overwrites the oldest slot, and cursor then also marks the oldest sample.
// Not safe for concurrent use.
type Ring struct {
	buf    []int64
	cursor int // next write position
	count  int
}

// NewRing creates an empty ring with the given capacity.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]int64, capacity)}
}

// Cap returns the capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of samples held.
func (r *Ring) Len() int {
	return r.count
}

// Push appends a sample, evicting the oldest when full.
func (r *Ring) Push(v int64) {
	r.buf[r.cursor] = v
	r.cursor = (r.cursor + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// LogicalToPhysical maps logical index i (0 = oldest) to a buffer slot.
func (r *Ring) LogicalToPhysical(i int) int {
	start := 0
	if r.count == len(r.buf) {
		start = r.cursor
	}
	return (start + i) % len(r.buf)
}

// At returns the i-th oldest sample, or 0 when i is out of range.
func (r *Ring) At(i int) int64 {
	if i < 0 || i >= r.count {
		return 0
	}
	return r.buf[r.LogicalToPhysical(i)]
}

// Last returns the newest sample, or 0 when empty.
func (r *Ring) Last() int64 {
	if r.count == 0 {
		return 0
	}
	return r.buf[(r.cursor-1+len(r.buf))%len(r.buf)]
}

// Values returns the samples oldest first.
func (r *Ring) Values() []int64 {
	out := make([]int64, r.count)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// Reset empties the ring.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.cursor = 0
	r.count = 0
}

// restore replaces the ring's contents with persisted state. The caller
// validates the values.
func (r *Ring) restore(buf []int64, cursor, count int) {
	copy(r.buf, buf)
	r.cursor = cursor
	r.count = count
}
