package keypool

import (
	"sync/atomic"

	"github.com/caravan-llm/caravan/internal/core/domain"
)

// RotatingPool holds the ordered upstream credentials and a single
// process-wide rotation cursor. The cursor is a lock-free atomic counter:
// concurrent requests may observe the same position before one of them
// advances it, which duplicates load on a key under contention. That is the
// accepted behaviour of the shared-cursor design; callers wanting per-request
// isolation would need their own pool instance.
type RotatingPool struct {
	keys   []domain.APIKey
	cursor atomic.Uint64
}

func NewRotatingPool(keys []domain.APIKey) *RotatingPool {
	return &RotatingPool{keys: keys}
}

// Current returns the credential at the cursor without advancing it.
func (p *RotatingPool) Current() (domain.APIKey, error) {
	if len(p.keys) == 0 {
		return "", domain.ErrNoKeys
	}

	index := p.cursor.Load() % uint64(len(p.keys))
	return p.keys[index], nil
}

// Advance moves the cursor forward one position, wrapping modulo the pool
// size on read. No-op on an empty pool.
func (p *RotatingPool) Advance() {
	if len(p.keys) == 0 {
		return
	}
	p.cursor.Add(1)
}

func (p *RotatingPool) Size() int {
	return len(p.keys)
}

// Position reports the current cursor index, for status reporting and tests.
func (p *RotatingPool) Position() int {
	if len(p.keys) == 0 {
		return 0
	}
	return int(p.cursor.Load() % uint64(len(p.keys)))
}
