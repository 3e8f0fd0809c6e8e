// Package frames provides a bounded ring of audio frames.
//
// A call session buffers carrier media that arrives before the
// upstream provider connection is ready. The buffer is bounded: when
// full, the oldest frame is evicted so the most recent audio is always
// preserved, and the eviction count is kept for observability.
package frames

import "sync"

// Ring is a thread-safe bounded FIFO of audio frames. Unlike a
// blocking queue, Add never waits: when the ring is full the oldest
// frame is overwritten and counted as dropped.
type Ring struct {
	mu      sync.Mutex
	buf     [][]byte
	head    int64
	tail    int64
	dropped int64
}

// NewRing creates a Ring holding at most size frames.
func NewRing(size int) *Ring {
	if size <= 0 {
		panic("frames: ring size must be positive")
	}
	return &Ring{buf: make([][]byte, size)}
}

// Add appends one frame. If the ring is full the oldest frame is
// evicted and the head pointer advances.
func (r *Ring) Add(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.tail%int64(len(r.buf))] = frame
	r.tail++
	if r.tail-r.head > int64(len(r.buf)) {
		r.head++
		r.dropped++
	}
}

// Drain removes and returns all buffered frames in arrival order.
func (r *Ring) Drain() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int(r.tail - r.head)
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.head + int64(i)) % int64(len(r.buf))
		out = append(out, r.buf[idx])
		r.buf[idx] = nil
	}
	r.head = r.tail
	return out
}

// Len returns the number of frames currently buffered.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.tail - r.head)
}

// Cap returns the maximum number of frames the ring can hold.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Dropped returns the total number of frames evicted since creation.
func (r *Ring) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
