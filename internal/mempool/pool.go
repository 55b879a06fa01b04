// Package mempool holds custom operations waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrPoolFull      = errors.New("mempool is full")
	ErrValidation    = errors.New("transaction failed validation")
	ErrCoinbase      = errors.New("coinbase transactions are not relayed")
)

// DefaultMaxSize is the pool capacity used when New is given zero.
const DefaultMaxSize = 5000

// Pool is a FIFO of unconfirmed operations. Operations change balances
// that later operations read, so blocks take them in arrival order.
type Pool struct {
	mu      sync.RWMutex
	queue   []*tx.Transaction
	index   map[types.Hash]int // position in queue
	maxSize int
	policy  *Policy
}

// New creates a mempool holding at most maxSize transactions.
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		index:   make(map[types.Hash]int),
		maxSize: maxSize,
		policy:  DefaultPolicy(),
	}
}

// Add checks a transaction's structure and policy and queues it.
// State-dependent checks (balances, tokens) are the caller's job.
func (p *Pool) Add(t *tx.Transaction) (types.Hash, error) {
	if t.IsCoinbase() {
		return types.Hash{}, ErrCoinbase
	}
	if err := p.policy.Check(t); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := t.Validate(); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	h := t.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.has(h):
		return h, ErrAlreadyExists
	case len(p.queue) >= p.maxSize:
		return h, ErrPoolFull
	}
	p.index[h] = len(p.queue)
	p.queue = append(p.queue, t)
	return h, nil
}

func (p *Pool) has(h types.Hash) bool {
	_, ok := p.index[h]
	return ok
}

// Remove drops one transaction by hash.
func (p *Pool) Remove(h types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(map[types.Hash]bool{h: true})
}

// RemoveConfirmed drops every transaction a block included.
func (p *Pool) RemoveConfirmed(confirmed []*tx.Transaction) {
	gone := make(map[types.Hash]bool, len(confirmed))
	for _, t := range confirmed {
		gone[t.Hash()] = true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(gone)
}

// removeLocked compacts the queue in place, keeping arrival order.
func (p *Pool) removeLocked(gone map[types.Hash]bool) {
	kept := p.queue[:0]
	for _, t := range p.queue {
		h := t.Hash()
		if gone[h] {
			delete(p.index, h)
			continue
		}
		p.index[h] = len(kept)
		kept = append(kept, t)
	}
	clear(p.queue[len(kept):])
	p.queue = kept
}

// Has reports whether the transaction is queued.
func (p *Pool) Has(h types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.has(h)
}

// Get returns the queued transaction, or nil.
func (p *Pool) Get(h types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i, ok := p.index[h]; ok {
		return p.queue[i]
	}
	return nil
}

// Count returns the number of queued transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queue)
}

// SelectForBlock returns up to limit transactions in arrival order.
// A limit of zero or less selects everything.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if limit <= 0 || limit > len(p.queue) {
		limit = len(p.queue)
	}
	return slices.Clone(p.queue[:limit])
}

// Clear empties the pool and returns what it held in arrival order.
func (p *Pool) Clear() []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := p.queue
	p.queue = nil
	p.index = make(map[types.Hash]int)
	return all
}
