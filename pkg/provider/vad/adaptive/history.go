package adaptive

// History is a fixed-capacity FIFO of frame energies. Pushing onto a full
// history evicts the oldest value. The zero value is unusable; use
// [NewHistory].
type History struct {
	buf  []float64
	head int // index of the oldest value
	n    int
	sum  float64
}

// NewHistory returns an empty history holding at most capacity values.
// A capacity below 1 is treated as 1.
func NewHistory(capacity int) *History {
	return &History{buf: make([]float64, max(capacity, 1))}
}

// Push appends v, evicting the oldest value when full.
func (h *History) Push(v float64) {
	if h.n == len(h.buf) {
		h.sum -= h.buf[h.head]
		h.buf[h.head] = v
		h.head = (h.head + 1) % len(h.buf)
	} else {
		h.buf[(h.head+h.n)%len(h.buf)] = v
		h.n++
	}
	h.sum += v
}

// Mean returns the arithmetic mean of the held values, or 0 when empty.
func (h *History) Mean() float64 {
	if h.n == 0 {
		return 0
	}
	return h.sum / float64(h.n)
}

// Len returns the number of held values.
func (h *History) Len() int { return h.n }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// Values returns the held values oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, h.n)
	for i := range h.n {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// Clear empties the history.
func (h *History) Clear() {
	h.head, h.n, h.sum = 0, 0, 0
}
