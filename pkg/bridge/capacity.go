package bridge

import "sync"

// CapacityPool bounds the number of simultaneously bridged calls.
// It is the only backpressure mechanism: when the pool is exhausted
// new connections are refused outright, never queued.
type CapacityPool struct {
	mu    sync.Mutex
	limit int
	inUse int
}

// NewCapacityPool creates a pool with the given number of slots.
func NewCapacityPool(limit int) *CapacityPool {
	if limit <= 0 {
		panic("bridge: capacity limit must be positive")
	}
	return &CapacityPool{limit: limit}
}

// Acquire takes one slot. Returns ErrCapacityExceeded without
// consuming anything when the pool is full.
func (p *CapacityPool) Acquire() (*Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse >= p.limit {
		return nil, ErrCapacityExceeded
	}
	p.inUse++
	return &Ticket{pool: p}, nil
}

// InUse returns the number of live tickets.
func (p *CapacityPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Limit returns the configured ceiling.
func (p *CapacityPool) Limit() int {
	return p.limit
}

// Ticket is one concurrency slot. Release is idempotent: teardown can
// be triggered from several places but the slot is returned exactly
// once.
type Ticket struct {
	pool *CapacityPool
	once sync.Once
}

// Release returns the slot to the pool.
func (t *Ticket) Release() {
	t.once.Do(func() {
		t.pool.mu.Lock()
		t.pool.inUse--
		t.pool.mu.Unlock()
	})
}
