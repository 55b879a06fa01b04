package token

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

var (
	prefixToken  = []byte("t/") // t/<id4> -> Token JSON
	prefixSymbol = []byte("s/") // s/<SYMBOL> -> id4
)

// Store persists token metadata. The native coin is not stored; Get and
// Resolve answer for id 0 from the symbol given to NewStore.
type Store struct {
	db     storage.DB
	native *Token
}

// NewStore creates a token metadata store over db.
func NewStore(db storage.DB, nativeSymbol string) *Store {
	return &Store{db: db, native: Native(nativeSymbol)}
}

// Put stores t through b. Nothing is visible until b commits.
func (s *Store) Put(b storage.Batch, t *Token) error {
	if t.IsNative() {
		return fmt.Errorf("token id 0 is reserved")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("token marshal: %w", err)
	}
	if err := b.Put(tokenKey(t.ID), data); err != nil {
		return err
	}
	return b.Put(symbolKey(t.Symbol), idBytes(t.ID))
}

// Get retrieves a token by id.
func (s *Store) Get(id types.TokenID) (*Token, error) {
	if id == 0 {
		n := *s.native
		return &n, nil
	}
	data, err := s.db.Get(tokenKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("token get: %w", err)
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("token unmarshal: %w", err)
	}
	return &t, nil
}

// BySymbol looks a token up by symbol, case-insensitively.
func (s *Store) BySymbol(symbol string) (*Token, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == s.native.Symbol {
		return s.Get(0)
	}
	raw, err := s.db.Get(symbolKey(symbol))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("token symbol lookup: %w", err)
	}
	if len(raw) != 4 {
		return nil, fmt.Errorf("corrupt symbol index for %s", symbol)
	}
	return s.Get(types.TokenID(binary.BigEndian.Uint32(raw)))
}

// Resolve looks a token up by decimal id or symbol.
func (s *Store) Resolve(ref string) (*Token, error) {
	if id, ok := ParseID(strings.TrimSpace(ref)); ok {
		return s.Get(id)
	}
	return s.BySymbol(ref)
}

// ForEach iterates over created tokens in id order.
// Return a non-nil error from fn to stop iteration early.
func (s *Store) ForEach(fn func(*Token) error) error {
	return s.db.ForEach(prefixToken, func(key, value []byte) error {
		if len(key) != len(prefixToken)+4 {
			return nil // Malformed key, skip.
		}
		var t Token
		if err := json.Unmarshal(value, &t); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&t)
	})
}

// List returns the native coin followed by every created token.
func (s *Store) List() ([]*Token, error) {
	out := []*Token{s.native}
	err := s.ForEach(func(t *Token) error {
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NextID returns the id the next created token receives.
func (s *Store) NextID() (types.TokenID, error) {
	next := FirstUserID
	err := s.ForEach(func(t *Token) error {
		if t.ID >= next {
			next = t.ID + 1
		}
		return nil
	})
	return next, err
}

// Rollback deletes through b every token created at or above height.
func (s *Store) Rollback(b storage.Batch, height uint64) (int, error) {
	var doomed []*Token
	err := s.ForEach(func(t *Token) error {
		if t.CreationHeight >= height {
			doomed = append(doomed, t)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, t := range doomed {
		if err := b.Delete(tokenKey(t.ID)); err != nil {
			return 0, err
		}
		if err := b.Delete(symbolKey(t.Symbol)); err != nil {
			return 0, err
		}
	}
	return len(doomed), nil
}

func idBytes(id types.TokenID) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(id))
	return buf[:]
}

func tokenKey(id types.TokenID) []byte {
	key := make([]byte, 0, len(prefixToken)+4)
	key = append(key, prefixToken...)
	return append(key, idBytes(id)...)
}

func symbolKey(symbol string) []byte {
	key := make([]byte, 0, len(prefixSymbol)+len(symbol))
	key = append(key, prefixSymbol...)
	return append(key, symbol...)
}
