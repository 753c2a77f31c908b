package strategies

// History is a bounded FIFO of mid prices.
type History struct {
	buf  []float64
	size int
}

func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{buf: make([]float64, 0, size), size: size}
}

// Push appends v, evicting the oldest sample when full.
func (h *History) Push(v float64) {
	if len(h.buf) == h.size {
		copy(h.buf, h.buf[1:])
		h.buf = h.buf[:len(h.buf)-1]
	}
	h.buf = append(h.buf, v)
}

func (h *History) Len() int { return len(h.buf) }

func (h *History) Cap() int { return h.size }

// Values returns a copy, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, len(h.buf))
	copy(out, h.buf)
	return out
}

// Mean averages the last n samples after dropping the newest skip. When
// fewer than n remain it averages what is there.
func (h *History) Mean(n, skip int) (float64, bool) {
	end := len(h.buf) - skip
	if end <= 0 || n <= 0 {
		return 0, false
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, v := range h.buf[start:end] {
		sum += v
	}
	return sum / float64(end-start), true
}
