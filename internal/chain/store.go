package chain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/defiledger/internal/history"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/pkg/block"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// ErrBlockNotFound is returned for an unknown block hash or height.
var ErrBlockNotFound = errors.New("block not found")

// Key prefixes and state keys for the block store.
var (
	prefixBlock  = []byte("b/") // b/<hash(32)> -> StoredBlock JSON
	prefixHeight = []byte("h/") // h/<height(8)> -> hash(32)
	prefixTx     = []byte("x/") // x/<txhash(32)> -> height(8) + blockHash(32)
	keyTipHash   = []byte("s/tip")
	keyHeight    = []byte("s/height")
)

// StoredBlock is a block plus the account effects it produced. Keeping the
// effects lets the history index be rebuilt without re-running operations.
type StoredBlock struct {
	Block   *block.Block     `json:"block"`
	Effects []history.Effect `json:"effects"`
}

// BlockStore persists blocks and chain metadata. Writes go through a batch
// so a block commits together with the balances and tokens it changed.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore creates a block store backed by the given database.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// PutBlock stores a block and indexes it by height and tx hashes.
func (bs *BlockStore) PutBlock(b storage.Batch, rec *StoredBlock) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}
	hash := rec.Block.Hash()
	height := rec.Block.Header.Height
	if err := b.Put(blockKey(hash), data); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	if err := b.Put(heightKey(height), hash[:]); err != nil {
		return fmt.Errorf("height index put: %w", err)
	}
	for _, t := range rec.Block.Transactions {
		val := make([]byte, 8+types.HashSize)
		binary.BigEndian.PutUint64(val[:8], height)
		copy(val[8:], hash[:])
		if err := b.Put(txKey(t.Hash()), val); err != nil {
			return fmt.Errorf("tx index put: %w", err)
		}
	}
	return nil
}

// DeleteBlock removes a block and its indexes.
func (bs *BlockStore) DeleteBlock(b storage.Batch, rec *StoredBlock) error {
	if err := b.Delete(blockKey(rec.Block.Hash())); err != nil {
		return err
	}
	if err := b.Delete(heightKey(rec.Block.Header.Height)); err != nil {
		return err
	}
	for _, t := range rec.Block.Transactions {
		if err := b.Delete(txKey(t.Hash())); err != nil {
			return err
		}
	}
	return nil
}

// SetTip records the active chain tip.
func (bs *BlockStore) SetTip(b storage.Batch, hash types.Hash, height uint64) error {
	if err := b.Put(keyTipHash, hash[:]); err != nil {
		return fmt.Errorf("set tip hash: %w", err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	if err := b.Put(keyHeight, buf[:]); err != nil {
		return fmt.Errorf("set tip height: %w", err)
	}
	return nil
}

// Tip returns the active chain tip. ok is false on a fresh store.
func (bs *BlockStore) Tip() (hash types.Hash, height uint64, ok bool, err error) {
	hashBytes, err := bs.db.Get(keyTipHash)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, 0, false, nil
	}
	if err != nil {
		return types.Hash{}, 0, false, fmt.Errorf("tip hash: %w", err)
	}
	hash, err = types.HashFromBytes(hashBytes)
	if err != nil {
		return types.Hash{}, 0, false, fmt.Errorf("corrupt tip hash: %w", err)
	}
	heightBytes, err := bs.db.Get(keyHeight)
	if err != nil {
		return types.Hash{}, 0, false, fmt.Errorf("tip height missing: %w", err)
	}
	if len(heightBytes) != 8 {
		return types.Hash{}, 0, false, fmt.Errorf("corrupt tip height: got %d bytes", len(heightBytes))
	}
	return hash, binary.BigEndian.Uint64(heightBytes), true, nil
}

// GetBlock retrieves a block by its hash.
func (bs *BlockStore) GetBlock(hash types.Hash) (*StoredBlock, error) {
	data, err := bs.db.Get(blockKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("block get: %w", err)
	}
	var rec StoredBlock
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("block unmarshal: %w", err)
	}
	if rec.Block == nil || rec.Block.Header == nil {
		return nil, fmt.Errorf("corrupt block record %s", hash)
	}
	return &rec, nil
}

// HashAt returns the hash of the active block at height.
func (bs *BlockStore) HashAt(height uint64) (types.Hash, error) {
	hashBytes, err := bs.db.Get(heightKey(height))
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, fmt.Errorf("%w: height %d", ErrBlockNotFound, height)
	}
	if err != nil {
		return types.Hash{}, fmt.Errorf("height index get: %w", err)
	}
	hash, err := types.HashFromBytes(hashBytes)
	if err != nil {
		return types.Hash{}, fmt.Errorf("corrupt height index at %d: %w", height, err)
	}
	return hash, nil
}

// GetBlockByHeight retrieves the active block at height.
func (bs *BlockStore) GetBlockByHeight(height uint64) (*StoredBlock, error) {
	hash, err := bs.HashAt(height)
	if err != nil {
		return nil, err
	}
	return bs.GetBlock(hash)
}

// TxLocation returns the height and block hash that include txHash.
func (bs *BlockStore) TxLocation(txHash types.Hash) (uint64, types.Hash, error) {
	val, err := bs.db.Get(txKey(txHash))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, types.Hash{}, fmt.Errorf("transaction %s not in a block", txHash)
	}
	if err != nil {
		return 0, types.Hash{}, err
	}
	if len(val) < 8 {
		return 0, types.Hash{}, fmt.Errorf("corrupt tx index for %s", txHash)
	}
	hash, err := types.HashFromBytes(val[8:])
	if err != nil {
		return 0, types.Hash{}, fmt.Errorf("corrupt tx index for %s: %w", txHash, err)
	}
	return binary.BigEndian.Uint64(val[:8]), hash, nil
}

func blockKey(hash types.Hash) []byte {
	return append(append([]byte(nil), prefixBlock...), hash[:]...)
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(prefixHeight)+8)
	copy(key, prefixHeight)
	binary.BigEndian.PutUint64(key[len(prefixHeight):], height)
	return key
}

func txKey(hash types.Hash) []byte {
	return append(append([]byte(nil), prefixTx...), hash[:]...)
}
