// Package block defines blocks of custom operations.
package block

import (
	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Block is a header plus its transactions. The coinbase comes first; the
// rest keep the order they were accepted in, which is their txn number.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock assembles a block and fills in the merkle root.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	header.MerkleRoot = ComputeMerkleRoot(TxHashes(txs))
	return &Block{Header: header, Transactions: txs}
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}

// TxHashes returns the id of every transaction in order.
func TxHashes(txs []*tx.Transaction) []types.Hash {
	out := make([]types.Hash, len(txs))
	for i, t := range txs {
		out[i] = t.Hash()
	}
	return out
}
