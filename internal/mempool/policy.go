package mempool

import (
	"fmt"

	"github.com/Klingon-tech/defiledger/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in bytes (signing bytes).
const DefaultMaxTxSize = 100_000

// DefaultMaxOwnerLength bounds owner address texts.
const DefaultMaxOwnerLength = 128

// Policy defines transaction acceptance rules.
type Policy struct {
	MaxTxSize      int // Maximum transaction size in signing bytes.
	MaxOwnerLength int // Maximum length of an owner address text.
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize:      DefaultMaxTxSize,
		MaxOwnerLength: DefaultMaxOwnerLength,
	}
}

// Check validates a transaction against policy rules. Policy can vary per
// node; structural validity is tx.Validate's job.
func (p *Policy) Check(transaction *tx.Transaction) error {
	size := len(transaction.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if p.MaxOwnerLength > 0 {
		if len(transaction.From) > p.MaxOwnerLength {
			return fmt.Errorf("source owner too long: %d, max %d", len(transaction.From), p.MaxOwnerLength)
		}
		for i, c := range transaction.To {
			if len(c.Owner) > p.MaxOwnerLength {
				return fmt.Errorf("recipient %d owner too long: %d, max %d", i, len(c.Owner), p.MaxOwnerLength)
			}
		}
	}
	return nil
}
