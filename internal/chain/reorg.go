package chain

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/defiledger/internal/history"
	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/mempool"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// ErrGenesisReorg is returned when a rollback would remove the genesis block.
var ErrGenesisReorg = errors.New("cannot roll back the genesis block")

// ErrNotActive is returned when invalidating a block that is not on the
// active chain.
var ErrNotActive = errors.New("block is not on the active chain")

// InvalidateBlock removes the block with hash and every block after it.
// Their operations go back to the queue.
func (c *Chain) InvalidateBlock(hash types.Hash) (int, error) {
	rec, err := c.blocks.GetBlock(hash)
	if err != nil {
		return 0, err
	}
	height := rec.Block.Header.Height
	active, err := c.blocks.HashAt(height)
	if err != nil || active != hash {
		return 0, fmt.Errorf("%w: %s", ErrNotActive, hash)
	}
	return c.Rewind(height)
}

// Rewind removes every block at or above height, restoring balances,
// tokens and history to how they were after height-1. It returns the
// number of blocks removed. Rewinding above the tip is a no-op.
func (c *Chain) Rewind(height uint64) (int, error) {
	if height == 0 {
		return 0, ErrGenesisReorg
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if height > c.state.Height {
		return 0, nil
	}
	from := c.state.Height

	// Gather blocks newest first; their operations are re-queued oldest first.
	recs := make([]*StoredBlock, 0, from-height+1)
	for h := from; h >= height; h-- {
		rec, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return 0, fmt.Errorf("load block %d: %w", h, err)
		}
		recs = append(recs, rec)
	}
	parent, err := c.blocks.GetBlockByHeight(height - 1)
	if err != nil {
		return 0, fmt.Errorf("load parent block %d: %w", height-1, err)
	}

	batch := storage.NewBatch(c.db)
	if _, err := c.balances.Rollback(c.balancesNS.WrapBatch(batch), height); err != nil {
		return 0, fmt.Errorf("roll back balances: %w", err)
	}
	removedTokens, err := c.tokens.Rollback(c.tokensNS.WrapBatch(batch), height)
	if err != nil {
		return 0, fmt.Errorf("roll back tokens: %w", err)
	}
	bb := c.blocksNS.WrapBatch(batch)
	for _, rec := range recs {
		if err := c.blocks.DeleteBlock(bb, rec); err != nil {
			return 0, err
		}
	}
	if err := c.blocks.SetTip(bb, parent.Block.Hash(), height-1); err != nil {
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("commit rollback to %d: %w", height, err)
	}
	c.setTip(parent.Block.Header)

	var reverted []*tx.Transaction
	for i := len(recs) - 1; i >= 0; i-- {
		for _, t := range recs[i].Block.Transactions {
			if !t.IsCoinbase() {
				reverted = append(reverted, t)
			}
		}
	}
	c.requeueLocked(reverted)

	indexErr := c.syncIndexLocked()
	if err := c.rebuildPendingLocked(); err != nil {
		return len(recs), err
	}
	klog.Chain.Info().
		Uint64("from", from).
		Uint64("to", height-1).
		Int("blocks", len(recs)).
		Int("tokens_removed", removedTokens).
		Int("requeued", len(reverted)).
		Msg("Chain rolled back")
	if indexErr != nil {
		return len(recs), fmt.Errorf("roll back history index: %w", indexErr)
	}
	return len(recs), nil
}

// requeueLocked puts reverted operations back in front of anything
// already queued, keeping their original order.
func (c *Chain) requeueLocked(reverted []*tx.Transaction) {
	queued := c.pool.Clear()
	for _, t := range append(reverted, queued...) {
		if _, err := c.pool.Add(t); err != nil && !errors.Is(err, mempool.ErrAlreadyExists) {
			klog.Chain.Debug().Err(err).Str("txid", t.Hash().String()).Msg("Operation not requeued")
		}
	}
}

// syncIndexLocked brings the history index in line with the block store:
// index blocks that are not on the active chain are rolled back and missing
// ones are replayed from the stored effects.
func (c *Chain) syncIndexLocked() error {
	if c.index == nil {
		return nil
	}
	ih, ihash, ok := c.index.Tip()

	if ok && ih > c.state.Height {
		if _, err := c.index.Rollback(c.state.Height + 1); err != nil {
			return err
		}
		ih, ihash, ok = c.index.Tip()
	}
	for ok {
		active, err := c.blocks.HashAt(ih)
		if err == nil && active.String() == ihash {
			break
		}
		if _, err := c.index.Rollback(ih); err != nil {
			return err
		}
		ih, ihash, ok = c.index.Tip()
	}

	start := uint64(0)
	if ok {
		start = ih + 1
	}
	for h := start; h <= c.state.Height; h++ {
		rec, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return err
		}
		hdr := rec.Block.Header
		if err := c.index.CommitBlock(history.Block{Height: hdr.Height, Hash: hdr.Hash(), Time: hdr.Timestamp}, rec.Effects); err != nil {
			return fmt.Errorf("index block %d: %w", h, err)
		}
	}
	return nil
}
