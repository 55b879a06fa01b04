package block

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader          = errors.New("block has nil header")
	ErrNoTransactions     = errors.New("block has no transactions")
	ErrBadMerkleRoot      = errors.New("merkle root mismatch")
	ErrBadVersion         = errors.New("unsupported block version")
	ErrZeroTimestamp      = errors.New("block timestamp is zero")
	ErrNoCoinbase         = errors.New("first transaction must be coinbase")
	ErrMultipleCoinbase   = errors.New("multiple coinbase transactions in block")
	ErrTooManyTxs         = errors.New("too many transactions in block")
	ErrDuplicateTx        = errors.New("duplicate transaction in block")
	ErrBadCoinbaseNonce   = errors.New("coinbase nonce must equal block height")
	ErrBadPrevHash        = errors.New("previous hash does not match parent")
	ErrNonSequentialBlock = errors.New("block height does not follow parent")
)

// Block version constants.
const (
	CurrentVersion = 1
	MaxVersion     = 1
)

// MaxBlockTxs caps the transactions in one block, coinbase included.
const MaxBlockTxs = 10_000

// Validate checks block structure and internal consistency. It does not
// apply the transactions; that needs chain state.
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}
	if b.Header.Version < 1 || b.Header.Version > MaxVersion {
		return fmt.Errorf("%w: got %d, want 1..%d", ErrBadVersion, b.Header.Version, MaxVersion)
	}
	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}
	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}
	if len(b.Transactions) > MaxBlockTxs {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), MaxBlockTxs)
	}

	coinbase := b.Transactions[0]
	if !coinbase.IsCoinbase() {
		return ErrNoCoinbase
	}
	if coinbase.Nonce != b.Header.Height {
		return fmt.Errorf("%w: nonce %d, height %d", ErrBadCoinbaseNonce, coinbase.Nonce, b.Header.Height)
	}

	hashes := TxHashes(b.Transactions)
	seen := make(map[types.Hash]int, len(hashes))
	for i, t := range b.Transactions {
		if i > 0 && t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i, ErrMultipleCoinbase)
		}
		if prev, dup := seen[hashes[i]]; dup {
			return fmt.Errorf("tx %d: %w: same as tx %d", i, ErrDuplicateTx, prev)
		}
		seen[hashes[i]] = i
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	if root := ComputeMerkleRoot(hashes); b.Header.MerkleRoot != root {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, root)
	}
	return nil
}

// ValidateLink checks that b extends parent.
func (b *Block) ValidateLink(parent *Header) error {
	if b.Header.Height != parent.Height+1 {
		return fmt.Errorf("%w: %d after %d", ErrNonSequentialBlock, b.Header.Height, parent.Height)
	}
	if b.Header.PrevHash != parent.Hash() {
		return ErrBadPrevHash
	}
	return nil
}

// Coinbase builds the reward transaction for height.
func Coinbase(height uint64, miner string, reward types.TokenAmount) *tx.Transaction {
	return &tx.Transaction{
		Version: tx.CurrentVersion,
		Type:    tx.TypeCoinbase,
		To:      []tx.Credit{{Owner: miner, Amounts: []types.TokenAmount{reward}}},
		Nonce:   height,
	}
}
