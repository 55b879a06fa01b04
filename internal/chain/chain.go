// Package chain runs the ledger's block production: it queues custom
// operations, seals them into blocks, applies them to balances and tokens,
// and hands each block's effects to the history index.
package chain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/accounts"
	"github.com/Klingon-tech/defiledger/internal/history"
	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/mempool"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/internal/token"
	"github.com/Klingon-tech/defiledger/internal/txtype"
	"github.com/Klingon-tech/defiledger/pkg/address"
	"github.com/Klingon-tech/defiledger/pkg/block"
	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// ErrMiningDisabled is returned by Generate on networks without on-demand blocks.
var ErrMiningDisabled = errors.New("block generation is only available on regtest")

// Namespaces of the chain state inside the node database.
var (
	nsBlocks   = []byte("c/")
	nsBalances = []byte("a/")
	nsTokens   = []byte("t/")
)

// Chain owns the block store, balances, tokens and pending operations.
// All mutations hold mu; reads of committed state do not need it.
type Chain struct {
	mu       sync.RWMutex
	params   *config.ChainParams
	codec    *address.Codec
	registry *txtype.Registry
	index    *history.Indexer // nil when the account index is disabled

	db         storage.DB
	blocksNS   *storage.PrefixDB
	balancesNS *storage.PrefixDB
	tokensNS   *storage.PrefixDB
	blocks     *BlockStore
	balances   *accounts.Store
	tokens     *token.Store
	pool       *mempool.Pool

	state   State
	pending *working // committed state plus every pooled operation
	nonce   uint64
	now     func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock overrides the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithPoolSize overrides the pending operation limit.
func WithPoolSize(n int) Option {
	return func(c *Chain) { c.pool = mempool.New(n) }
}

// New opens the chain stored in db, creating the genesis block on first
// start. index may be nil.
func New(db storage.DB, params *config.ChainParams, registry *txtype.Registry, index *history.Indexer, opts ...Option) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if params == nil || registry == nil {
		return nil, fmt.Errorf("chain params and type registry are required")
	}
	c := &Chain{
		params:     params,
		codec:      address.NewCodec(&params.Address),
		registry:   registry,
		index:      index,
		db:         db,
		blocksNS:   storage.NewPrefixDB(db, nsBlocks),
		balancesNS: storage.NewPrefixDB(db, nsBalances),
		tokensNS:   storage.NewPrefixDB(db, nsTokens),
		pool:       mempool.New(0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.blocks = NewBlockStore(c.blocksNS)
	c.balances = accounts.NewStore(c.balancesNS)
	c.tokens = token.NewStore(c.tokensNS, config.NativeToken)
	c.nonce = uint64(c.now().UnixNano())

	hash, height, ok, err := c.blocks.Tip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}
	if !ok {
		if err := c.initGenesis(); err != nil {
			return nil, fmt.Errorf("create genesis: %w", err)
		}
	} else {
		rec, err := c.blocks.GetBlock(hash)
		if err != nil {
			return nil, fmt.Errorf("load tip block: %w", err)
		}
		c.setTip(rec.Block.Header)
		if c.state.Height != height {
			return nil, fmt.Errorf("tip height %d does not match tip block height %d", height, c.state.Height)
		}
	}

	if err := c.syncIndexLocked(); err != nil {
		return nil, fmt.Errorf("sync history index: %w", err)
	}
	if c.pending, err = c.freshState(); err != nil {
		return nil, err
	}
	klog.Chain.Info().
		Str("network", string(params.Network)).
		Uint64("height", c.state.Height).
		Str("tip", c.state.TipHash.String()).
		Msg("Chain loaded")
	return c, nil
}

func (c *Chain) initGenesis() error {
	header := &block.Header{Version: block.CurrentVersion, Timestamp: c.now().Unix(), Height: 0}
	rec := &StoredBlock{Block: block.NewBlock(header, nil)}

	batch := storage.NewBatch(c.db)
	bb := c.blocksNS.WrapBatch(batch)
	if err := c.blocks.PutBlock(bb, rec); err != nil {
		return err
	}
	if err := c.blocks.SetTip(bb, rec.Block.Hash(), 0); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	c.setTip(header)
	return nil
}

func (c *Chain) setTip(h *block.Header) {
	c.state = State{Height: h.Height, TipHash: h.Hash(), TipTimestamp: h.Timestamp, Header: h}
}

func (c *Chain) freshState() (*working, error) {
	next, err := c.tokens.NextID()
	if err != nil {
		return nil, fmt.Errorf("next token id: %w", err)
	}
	return &working{
		balances: c.balances.NewView(),
		tokens:   &tokenView{store: c.tokens, next: next},
	}, nil
}

// Params returns the chain parameters.
func (c *Chain) Params() *config.ChainParams { return c.params }

// Codec returns the address codec of the chain's network.
func (c *Chain) Codec() *address.Codec { return c.codec }

// Registry returns the custom operation type registry.
func (c *Chain) Registry() *txtype.Registry { return c.registry }

// Index returns the history index, or nil when it is disabled.
func (c *Chain) Index() *history.Indexer { return c.index }

// Height returns the current tip height.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Height
}

// TipHash returns the current tip block hash.
func (c *Chain) TipHash() types.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.TipHash
}

// BlockHash returns the hash of the active block at height.
func (c *Chain) BlockHash(height uint64) (types.Hash, error) {
	return c.blocks.HashAt(height)
}

// Block returns the stored block with hash.
func (c *Chain) Block(hash types.Hash) (*StoredBlock, error) {
	return c.blocks.GetBlock(hash)
}

// PendingCount returns the number of queued operations.
func (c *Chain) PendingCount() int {
	return c.pool.Count()
}

// Submit checks t against the committed state plus every queued operation
// and queues it. A zero Version or Nonce is filled in.
func (c *Chain) Submit(t *tx.Transaction) (types.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Version == 0 {
		t.Version = tx.CurrentVersion
	}
	if t.Nonce == 0 {
		c.nonce++
		t.Nonce = c.nonce
	}
	if t.IsCoinbase() {
		return types.Hash{}, mempool.ErrCoinbase
	}
	if err := t.Validate(); err != nil {
		return types.Hash{}, err
	}

	trial := c.pending.fork()
	txn := uint32(c.pool.Count() + 1)
	if _, err := c.applyTx(trial, t, c.state.Height+1, txn); err != nil {
		return types.Hash{}, err
	}
	hash, err := c.pool.Add(t)
	if err != nil {
		return hash, err
	}
	c.pending = trial
	klog.Chain.Debug().Str("txid", hash.String()).Str("type", t.Type.String()).Msg("Operation queued")
	return hash, nil
}

// Generate seals up to n blocks paying the reward to miner and returns
// their hashes. Queued operations go into the first block.
func (c *Chain) Generate(n int, miner string) ([]types.Hash, error) {
	if !c.params.MineOnDemand {
		return nil, ErrMiningDisabled
	}
	owner, err := c.NormalizeOwner(miner)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	hashes := make([]types.Hash, 0, n)
	for i := 0; i < n; i++ {
		h, err := c.produceLocked(owner)
		if err != nil {
			return hashes, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func (c *Chain) produceLocked(miner string) (types.Hash, error) {
	height := c.state.Height + 1
	w, err := c.freshState()
	if err != nil {
		return types.Hash{}, err
	}

	reward := types.TokenAmount{Token: config.NativeToken, Amount: c.params.BlockReward}
	all := []*tx.Transaction{block.Coinbase(height, miner, reward)}
	eff, err := c.applyTx(w, all[0], height, 0)
	if err != nil {
		return types.Hash{}, fmt.Errorf("apply coinbase: %w", err)
	}
	effects := []history.Effect{eff}

	var dropped []*tx.Transaction
	for _, t := range c.pool.SelectForBlock(block.MaxBlockTxs - 1) {
		trial := w.fork()
		eff, err := c.applyTx(trial, t, height, uint32(len(all)))
		if err != nil {
			klog.Chain.Warn().Err(err).Str("txid", t.Hash().String()).Msg("Dropping queued operation")
			dropped = append(dropped, t)
			continue
		}
		w = trial
		all = append(all, t)
		effects = append(effects, eff)
	}

	ts := c.now().Unix()
	if ts <= c.state.TipTimestamp {
		ts = c.state.TipTimestamp + 1
	}
	blk := block.NewBlock(&block.Header{
		Version:   block.CurrentVersion,
		PrevHash:  c.state.TipHash,
		Timestamp: ts,
		Height:    height,
	}, all)
	if err := blk.Validate(); err != nil {
		return types.Hash{}, fmt.Errorf("produced invalid block: %w", err)
	}
	if err := blk.ValidateLink(c.state.Header); err != nil {
		return types.Hash{}, fmt.Errorf("produced unlinked block: %w", err)
	}

	rec := &StoredBlock{Block: blk, Effects: effects}
	batch := storage.NewBatch(c.db)
	bb := c.blocksNS.WrapBatch(batch)
	if err := c.blocks.PutBlock(bb, rec); err != nil {
		return types.Hash{}, err
	}
	if err := c.blocks.SetTip(bb, blk.Hash(), height); err != nil {
		return types.Hash{}, err
	}
	if err := w.balances.Commit(c.balancesNS.WrapBatch(batch), height); err != nil {
		return types.Hash{}, err
	}
	tb := c.tokensNS.WrapBatch(batch)
	for _, t := range w.tokens.created {
		if err := c.tokens.Put(tb, t); err != nil {
			return types.Hash{}, err
		}
	}
	if err := batch.Commit(); err != nil {
		return types.Hash{}, fmt.Errorf("commit block %d: %w", height, err)
	}

	c.setTip(blk.Header)
	c.pool.RemoveConfirmed(all[1:])
	c.pool.RemoveConfirmed(dropped)
	klog.Chain.Debug().
		Uint64("height", height).
		Str("hash", c.state.TipHash.String()).
		Int("txs", len(all)).
		Msg("Block produced")

	indexErr := c.syncIndexLocked()
	if err := c.rebuildPendingLocked(); err != nil {
		return c.state.TipHash, err
	}
	if indexErr != nil {
		return c.state.TipHash, fmt.Errorf("block %d committed but not indexed: %w", height, indexErr)
	}
	return c.state.TipHash, nil
}

// rebuildPendingLocked re-checks every queued operation against the new
// committed state, dropping those that no longer apply.
func (c *Chain) rebuildPendingLocked() error {
	w, err := c.freshState()
	if err != nil {
		return err
	}
	height := c.state.Height + 1
	for i, t := range c.pool.SelectForBlock(0) {
		trial := w.fork()
		if _, err := c.applyTx(trial, t, height, uint32(i+1)); err != nil {
			klog.Chain.Debug().Err(err).Str("txid", t.Hash().String()).Msg("Queued operation no longer valid")
			c.pool.Remove(t.Hash())
			continue
		}
		w = trial
	}
	c.pending = w
	return nil
}

// Balance returns the committed balance of owner in the token ref.
func (c *Chain) Balance(book accounts.Book, owner, ref string) (types.Amount, error) {
	owner, err := c.NormalizeOwner(owner)
	if err != nil {
		return 0, err
	}
	tok, err := c.tokens.Resolve(ref)
	if err != nil {
		return 0, err
	}
	return c.balances.Balance(book, owner, tok.ID)
}

// Balances returns every non-zero committed balance of owner in book,
// ordered by token id and labelled by symbol.
func (c *Chain) Balances(book accounts.Book, owner string) ([]types.TokenAmount, error) {
	owner, err := c.NormalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	raw, err := c.balances.Balances(book, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]types.TokenID, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]types.TokenAmount, 0, len(ids))
	for _, id := range ids {
		tok, err := c.tokens.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, types.TokenAmount{Token: tok.Symbol, Amount: raw[id]})
	}
	return out, nil
}

// Tokens lists every committed token, native coin first.
func (c *Chain) Tokens() ([]*token.Token, error) {
	return c.tokens.List()
}

// Token resolves a committed token by id or symbol.
func (c *Chain) Token(ref string) (*token.Token, error) {
	return c.tokens.Resolve(ref)
}
