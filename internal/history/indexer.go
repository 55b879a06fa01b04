package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/metrics"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/internal/txtype"
	"github.com/Klingon-tech/defiledger/pkg/types"
	"github.com/zeebo/blake3"
)

// ErrHeightRegression is returned when a block is committed out of order.
var ErrHeightRegression = errors.New("block height does not extend the index tip")

// Indexer owns the account and burn history. Commits and rollbacks take
// the write lock for their whole duration, so a query observes either the
// state before a block or the state after it.
type Indexer struct {
	mu       sync.RWMutex
	db       storage.DB
	registry *txtype.Registry
	metrics  *metrics.Metrics

	tip    blockRecord
	hasTip bool
}

// NewIndexer opens the index stored in db (normally a PrefixDB namespace).
func NewIndexer(db storage.DB, registry *txtype.Registry, m *metrics.Metrics) (*Indexer, error) {
	idx := &Indexer{db: db, registry: registry, metrics: m}
	data, err := db.Get(tipKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read index tip: %w", err)
	default:
		if err := json.Unmarshal(data, &idx.tip); err != nil {
			return nil, fmt.Errorf("corrupt index tip: %w", err)
		}
		idx.hasTip = true
	}
	return idx, nil
}

// Tip returns the last committed height. ok is false for an empty index.
func (idx *Indexer) Tip() (height uint64, hash string, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tip.Height, idx.tip.Hash, idx.hasTip
}

// BlockWriter stages one block's entries. Nothing is visible until Commit.
type BlockWriter struct {
	idx     *Indexer
	block   Block
	effects []Effect
}

// Begin starts staging entries for block.
func (idx *Indexer) Begin(block Block) *BlockWriter {
	return &BlockWriter{idx: idx, block: block}
}

// Record stages the entries of one committed operation.
func (w *BlockWriter) Record(effect Effect) {
	w.effects = append(w.effects, effect)
}

// Commit appends every staged entry and advances the tip, all in one batch.
// A block with no effects still advances the tip.
func (w *BlockWriter) Commit() error {
	return w.idx.commit(w.block, w.effects)
}

// CommitBlock is Begin, Record for each effect, then Commit.
func (idx *Indexer) CommitBlock(block Block, effects []Effect) error {
	return idx.commit(block, effects)
}

func (idx *Indexer) commit(block Block, effects []Effect) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.hasTip && block.Height != idx.tip.Height+1 {
		return fmt.Errorf("%w: got %d, tip %d", ErrHeightRegression, block.Height, idx.tip.Height)
	}

	batch := storage.NewBatch(idx.db)
	hash := block.Hash.String()
	var seq uint32
	var accountCount, burnCount int

	put := func(key []byte, e Entry) error {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		if err := batch.Put(key, data); err != nil {
			return err
		}
		if err := batch.Put(heightKey(block.Height, seq), key); err != nil {
			return err
		}
		seq++
		return nil
	}

	seen := make(map[uint32]bool, len(effects))
	for _, eff := range effects {
		if seen[eff.TxN] {
			return fmt.Errorf("duplicate txn %d in block %d", eff.TxN, block.Height)
		}
		seen[eff.TxN] = true

		base := Entry{
			BlockHeight: block.Height,
			BlockHash:   hash,
			BlockTime:   block.Time,
			Type:        eff.Type,
			TxN:         eff.TxN,
			TxID:        eff.TxID.String(),
		}
		for _, ch := range mergeChanges(eff.Changes) {
			e := base
			e.Owner = ch.Owner
			e.Amounts = formatAmounts(ch.Amounts)
			if err := put(accountKey(block.Height, eff.TxN, ch.Owner), e); err != nil {
				return err
			}
			if err := put(ownerKey(ch.Owner, block.Height, eff.TxN), e); err != nil {
				return err
			}
			accountCount++
		}
		if eff.Burn != nil && len(eff.Burn.Amounts) > 0 {
			e := base
			e.Owner = eff.Burn.Owner
			e.Amounts = formatAmounts(eff.Burn.Amounts)
			if err := put(burnKey(block.Height, eff.TxN), e); err != nil {
				return err
			}
			burnCount++
		}
	}

	rec := blockRecord{Height: block.Height, Hash: hash, Time: block.Time}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := batch.Put(blockKey(block.Height), data); err != nil {
		return err
	}
	if err := batch.Put(tipKey, data); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", block.Height, err)
	}

	idx.tip = rec
	idx.hasTip = true
	idx.metrics.ObserveCommit(block.Height, accountCount, burnCount)
	klog.Index.Debug().
		Uint64("height", block.Height).
		Int("account_entries", accountCount).
		Int("burn_entries", burnCount).
		Msg("Block indexed")
	return nil
}

// Rollback removes every entry with height >= toHeight. Rolling back to a
// height above the tip is a no-op. Only the removed heights are visited.
func (idx *Indexer) Rollback(toHeight uint64) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.hasTip || toHeight > idx.tip.Height {
		return 0, nil
	}

	batch := storage.NewBatch(idx.db)
	removed := 0
	for h := idx.tip.Height; ; h-- {
		err := idx.db.ForEach(heightScanPrefix(h), func(key, value []byte) error {
			if err := batch.Delete(value); err != nil {
				return err
			}
			if len(value) > 0 && (value[0] == accountPrefix[0] || value[0] == burnPrefix[0]) {
				removed++
			}
			return batch.Delete(key)
		})
		if err != nil {
			return 0, fmt.Errorf("scan height %d: %w", h, err)
		}
		if err := batch.Delete(blockKey(h)); err != nil {
			return 0, err
		}
		if h == toHeight {
			break
		}
	}

	// The index may have started above height 0. Rolling back to or below
	// its first block leaves it empty, exactly as before that block.
	var newTip blockRecord
	hasTip := false
	if toHeight > 0 {
		data, err := idx.db.Get(blockKey(toHeight - 1))
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return 0, fmt.Errorf("read block record %d: %w", toHeight-1, err)
		default:
			if err := json.Unmarshal(data, &newTip); err != nil {
				return 0, fmt.Errorf("corrupt block record %d: %w", toHeight-1, err)
			}
			if err := batch.Put(tipKey, data); err != nil {
				return 0, err
			}
			hasTip = true
		}
	}
	if !hasTip {
		if err := batch.Delete(tipKey); err != nil {
			return 0, err
		}
	}

	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("commit rollback to %d: %w", toHeight, err)
	}

	from := idx.tip.Height
	idx.tip, idx.hasTip = newTip, hasTip
	idx.metrics.ObserveRollback(newTip.Height, removed)
	klog.Index.Info().
		Uint64("from", from).
		Uint64("to", toHeight).
		Int("removed", removed).
		Msg("History rolled back")
	return removed, nil
}

// Digest hashes the full index contents in key order. Two indexes holding
// the same entries and tip produce the same digest.
func (idx *Indexer) Digest() (types.Hash, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	h := blake3.New()
	var lenBuf [4]byte
	write := func(b []byte) {
		lenBuf[0] = byte(len(b) >> 24)
		lenBuf[1] = byte(len(b) >> 16)
		lenBuf[2] = byte(len(b) >> 8)
		lenBuf[3] = byte(len(b))
		h.Write(lenBuf[:])
		h.Write(b)
	}
	err := idx.db.ForEach(nil, func(key, value []byte) error {
		write(key)
		write(value)
		return nil
	})
	if err != nil {
		return types.Hash{}, err
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
