package browser

import "sync/atomic"

// Pool fans work across a fixed set of interaction handles with
// round-robin assignment. Each handle serializes its own use through its
// lock, so unrelated tasks sharing a handle execute strictly in turn.
type Pool struct {
	handles []*Handle
	next    atomic.Uint64
}

// NewPool takes ownership of the given handles.
func NewPool(handles []*Handle) *Pool {
	return &Pool{handles: handles}
}

// Size returns the number of handles in the pool.
func (p *Pool) Size() int { return len(p.handles) }

// Next returns the next handle in round-robin order.
func (p *Pool) Next() *Handle {
	n := p.next.Add(1) - 1
	return p.handles[int(n)%len(p.handles)]
}

// Close closes every handle's underlying surface exactly once,
// regardless of task outcome.
func (p *Pool) Close() {
	for _, h := range p.handles {
		h.Close()
	}
}
