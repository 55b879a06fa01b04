// Package accounts holds token balances per owner.
//
// Balances live in two books. The coins book is the spendable native coin
// paid out by block rewards; the accounts book is what custom operations
// move between owners. Every committed block stores the previous value of
// each balance it touched, so rolling back restores balances exactly.
//
// Key layout:
//
//	Balance: "b/<book><owner>\x00<tokenID4>" → amount (8 bytes, big-endian)
//	Undo:    "u/<height8>"                   → JSON []undoRecord
package accounts

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Book selects one of the two balance books.
type Book byte

const (
	Coins    Book = 'c'
	Accounts Book = 'a'
)

func (b Book) String() string {
	switch b {
	case Coins:
		return "coins"
	case Accounts:
		return "accounts"
	default:
		return fmt.Sprintf("book(%c)", byte(b))
	}
}

// Balance errors.
var (
	ErrInsufficient = errors.New("insufficient balance")
	ErrOverflow     = errors.New("balance exceeds maximum")
)

var (
	prefixBalance = []byte("b/")
	prefixUndo    = []byte("u/")
)

// Store reads committed balances and applies per-block undo.
type Store struct {
	db storage.DB
}

// NewStore creates a balance store over db (normally a PrefixDB namespace).
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Balance returns the committed balance of owner in token.
func (s *Store) Balance(book Book, owner string, token types.TokenID) (types.Amount, error) {
	data, err := s.db.Get(balanceKey(book, owner, token))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance get: %w", err)
	}
	return decodeAmount(data)
}

// Balances returns every non-zero committed balance of owner.
func (s *Store) Balances(book Book, owner string) (map[types.TokenID]types.Amount, error) {
	prefix := ownerPrefix(book, owner)
	out := make(map[types.TokenID]types.Amount)
	err := s.db.ForEach(prefix, func(key, value []byte) error {
		if len(key) != len(prefix)+4 {
			return nil
		}
		amt, err := decodeAmount(value)
		if err != nil {
			return err
		}
		out[types.TokenID(binary.BigEndian.Uint32(key[len(prefix):]))] = amt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type undoRecord struct {
	Book    Book          `json:"book"`
	Owner   string        `json:"owner"`
	Token   types.TokenID `json:"token"`
	Prev    types.Amount  `json:"prev"`
	Existed bool          `json:"existed"`
}

type slot struct {
	book  Book
	owner string
	token types.TokenID
}

// Rollback restores through b every balance changed at or above height and
// drops the undo data of those heights. It returns the heights undone.
func (s *Store) Rollback(b storage.Batch, height uint64) (int, error) {
	type undoBlock struct {
		height  uint64
		records []undoRecord
	}
	var blocks []undoBlock
	err := s.db.ForEach(prefixUndo, func(key, value []byte) error {
		if len(key) != len(prefixUndo)+8 {
			return nil
		}
		h := binary.BigEndian.Uint64(key[len(prefixUndo):])
		if h < height {
			return nil
		}
		var recs []undoRecord
		if err := json.Unmarshal(value, &recs); err != nil {
			return fmt.Errorf("corrupt undo data at %d: %w", h, err)
		}
		blocks = append(blocks, undoBlock{height: h, records: recs})
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Walk newest to oldest so the oldest previous value of a slot wins.
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].height > blocks[j].height })
	restore := make(map[slot]undoRecord)
	for _, blk := range blocks {
		for _, r := range blk.records {
			restore[slot{r.Book, r.Owner, r.Token}] = r
		}
		if err := b.Delete(undoKey(blk.height)); err != nil {
			return 0, err
		}
	}
	for sl, r := range restore {
		key := balanceKey(sl.book, sl.owner, sl.token)
		if !r.Existed {
			if err := b.Delete(key); err != nil {
				return 0, err
			}
			continue
		}
		if err := b.Put(key, encodeAmount(r.Prev)); err != nil {
			return 0, err
		}
	}
	return len(blocks), nil
}

func balanceKey(book Book, owner string, token types.TokenID) []byte {
	key := ownerPrefix(book, owner)
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], uint32(token))
	return append(key, id[:]...)
}

func ownerPrefix(book Book, owner string) []byte {
	key := make([]byte, 0, len(prefixBalance)+1+len(owner)+1+4)
	key = append(key, prefixBalance...)
	key = append(key, byte(book))
	key = append(key, owner...)
	return append(key, 0)
}

func undoKey(height uint64) []byte {
	key := make([]byte, len(prefixUndo)+8)
	copy(key, prefixUndo)
	binary.BigEndian.PutUint64(key[len(prefixUndo):], height)
	return key
}

func encodeAmount(a types.Amount) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(a))
	return buf[:]
}

func decodeAmount(data []byte) (types.Amount, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt balance value (%d bytes)", len(data))
	}
	return types.Amount(binary.BigEndian.Uint64(data)), nil
}
