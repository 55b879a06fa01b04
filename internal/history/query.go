package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Scope selects whose history a query reads.
type Scope struct {
	// All reads every owner. When false, only Owners are read.
	All    bool
	Owners []string
}

// AllOwners is the scope of every account.
func AllOwners() Scope { return Scope{All: true} }

// Owners is the scope of the given owner texts.
func Owners(owners ...string) Scope { return Scope{Owners: owners} }

// Filter narrows a query. The zero Filter matches everything.
type Filter struct {
	// Type is a registry name or one-character code.
	Type string
	// Token keeps entries with an amount in this token symbol.
	Token string
	// MaxBlockHeight drops entries above it when set.
	MaxBlockHeight *uint64
	// Depth keeps entries within Depth blocks below MaxBlockHeight (or the
	// tip) when set.
	Depth *uint64
	// Start skips that many matching entries.
	Start int
	// Limit caps the result. Zero means unlimited.
	Limit int
}

var errStop = errors.New("stop")

type matcher struct {
	typeName string
	token    string
	max      uint64
	min      uint64
}

func (idx *Indexer) matcherLocked(f Filter) (matcher, error) {
	m := matcher{token: f.Token, max: ^uint64(0)}
	if f.Type != "" {
		code, err := idx.registry.Resolve(f.Type, idx.tip.Height)
		if err != nil {
			return m, err
		}
		name, err := idx.registry.Name(code)
		if err != nil {
			return m, err
		}
		m.typeName = name
	}
	if f.MaxBlockHeight != nil {
		m.max = *f.MaxBlockHeight
	}
	if f.Depth != nil {
		top := m.max
		if f.MaxBlockHeight == nil {
			top = idx.tip.Height
		}
		if *f.Depth < top {
			m.min = top - *f.Depth
		}
	}
	return m, nil
}

func (m matcher) match(e Entry) bool {
	if e.BlockHeight > m.max || e.BlockHeight < m.min {
		return false
	}
	if m.typeName != "" && e.Type != m.typeName {
		return false
	}
	if m.token != "" && !e.hasToken(m.token) {
		return false
	}
	return true
}

// List returns account history for scope, newest first.
func (idx *Indexer) List(scope Scope, f Filter) ([]Entry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m, err := idx.matcherLocked(f)
	if err != nil {
		return nil, err
	}
	want := 0
	if f.Limit > 0 {
		want = f.Start + f.Limit
	}

	var out []Entry
	if scope.All {
		out, err = idx.scan(accountPrefix, m, want)
	} else {
		out, err = idx.scanOwners(scope.Owners, m, want)
	}
	if err != nil {
		return nil, err
	}
	return page(out, f.Start, f.Limit), nil
}

// ListBurns returns burn history, newest first.
func (idx *Indexer) ListBurns(f Filter) ([]Entry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m, err := idx.matcherLocked(f)
	if err != nil {
		return nil, err
	}
	want := 0
	if f.Limit > 0 {
		want = f.Start + f.Limit
	}
	out, err := idx.scan(burnPrefix, m, want)
	if err != nil {
		return nil, err
	}
	return page(out, f.Start, f.Limit), nil
}

// Count returns the number of entries List would return for scope and f
// with no Start or Limit.
func (idx *Indexer) Count(scope Scope, f Filter) (int, error) {
	f.Start, f.Limit = 0, 0
	entries, err := idx.List(scope, f)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// scan walks one prefix in key order. want > 0 stops after that many matches.
func (idx *Indexer) scan(prefix []byte, m matcher, want int) ([]Entry, error) {
	var out []Entry
	err := idx.db.ForEach(prefix, func(_, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("corrupt history entry: %w", err)
		}
		if e.BlockHeight < m.min {
			return errStop
		}
		if !m.match(e) {
			return nil
		}
		out = append(out, e)
		if want > 0 && len(out) >= want {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return out, nil
}

func (idx *Indexer) scanOwners(owners []string, m matcher, want int) ([]Entry, error) {
	seen := make(map[string]bool, len(owners))
	var out []Entry
	for _, owner := range owners {
		if seen[owner] {
			continue
		}
		seen[owner] = true
		entries, err := idx.scan(ownerScanPrefix(owner), m, want)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	if len(seen) > 1 {
		sortNewestFirst(out)
	}
	if want > 0 && len(out) > want {
		out = out[:want]
	}
	return out, nil
}

// sortNewestFirst orders entries the way the account prefix iterates.
func sortNewestFirst(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.BlockHeight != b.BlockHeight {
			return a.BlockHeight > b.BlockHeight
		}
		if a.TxN != b.TxN {
			return a.TxN > b.TxN
		}
		return a.Owner < b.Owner
	})
}

func page(entries []Entry, start, limit int) []Entry {
	if start >= len(entries) {
		return []Entry{}
	}
	entries = entries[start:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
