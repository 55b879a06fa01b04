// Package tx defines custom operation transactions.
//
// A transaction carries exactly one operation. Its Type byte is the custom
// operation code; Type 0 marks the coinbase that pays the block reward.
// Which fields are set depends on the type, see Validate.
package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Type is the one-byte operation code. It encodes in JSON as its character.
type Type byte

// TypeCoinbase is the block reward transaction.
const TypeCoinbase Type = 0

// Operation codes carried by the ledger.
const (
	TypeCreateToken      Type = 'T'
	TypeMintToken        Type = 'M'
	TypeBurnToken        Type = 'F'
	TypeUtxosToAccount   Type = 'U'
	TypeAccountToAccount Type = 'B'
)

// String returns the code as a one-character string, or "coinbase".
func (t Type) String() string {
	if t == TypeCoinbase {
		return "coinbase"
	}
	return string(rune(t))
}

// MarshalText encodes the type as its character.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a one-character type or "coinbase".
func (t *Type) UnmarshalText(text []byte) error {
	switch {
	case string(text) == "coinbase":
		*t = TypeCoinbase
	case len(text) == 1:
		*t = Type(text[0])
	default:
		return fmt.Errorf("invalid transaction type %q", text)
	}
	return nil
}

// Credit is a set of amounts paid to one owner.
type Credit struct {
	Owner   string              `json:"owner"`
	Amounts []types.TokenAmount `json:"amounts"`
}

// TokenSpec describes a token to create.
type TokenSpec struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Collateral string `json:"collateralAddress"`
	Mintable   bool   `json:"mintable"`
}

// Transaction is one custom operation.
type Transaction struct {
	Version uint32              `json:"version"`
	Type    Type                `json:"type"`
	From    string              `json:"from,omitempty"`
	To      []Credit            `json:"to,omitempty"`
	Amounts []types.TokenAmount `json:"amounts,omitempty"`
	Token   *TokenSpec          `json:"token,omitempty"`
	// Nonce tells apart otherwise identical operations. For the coinbase
	// it is the block height.
	Nonce uint64 `json:"nonce"`
}

// CurrentVersion is the transaction version produced by this software.
const CurrentVersion = 1

// IsCoinbase reports whether tx pays the block reward.
func (tx *Transaction) IsCoinbase() bool {
	return tx.Type == TypeCoinbase
}

// Hash computes the transaction ID (BLAKE3 hash of the signing bytes).
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation.
// Format: version(4) | type(1) | from | to_count(4) | [owner | amounts]... |
// amounts | token_flag(1) [symbol | name | collateral | mintable(1)] | nonce(8)
// where strings are len(4)+bytes and amounts are count(4) + [token | value(8)]...
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)
	buf = append(buf, byte(tx.Type))
	buf = appendString(buf, tx.From)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.To)))
	for _, c := range tx.To {
		buf = appendString(buf, c.Owner)
		buf = appendAmounts(buf, c.Amounts)
	}
	buf = appendAmounts(buf, tx.Amounts)

	if tx.Token == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = appendString(buf, tx.Token.Symbol)
		buf = appendString(buf, tx.Token.Name)
		buf = appendString(buf, tx.Token.Collateral)
		if tx.Token.Mintable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	return binary.LittleEndian.AppendUint64(buf, tx.Nonce)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendAmounts(buf []byte, amounts []types.TokenAmount) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(amounts)))
	for _, a := range amounts {
		buf = appendString(buf, a.Token)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(a.Amount))
	}
	return buf
}

// TotalCredits sums the credited amounts per token reference, keeping
// first-seen order.
func (tx *Transaction) TotalCredits() ([]types.TokenAmount, error) {
	var out []types.TokenAmount
	idx := make(map[string]int)
	for _, c := range tx.To {
		for _, a := range c.Amounts {
			i, ok := idx[a.Token]
			if !ok {
				idx[a.Token] = len(out)
				out = append(out, a)
				continue
			}
			if out[i].Amount > types.MaxMoney-a.Amount {
				return nil, fmt.Errorf("%w: token %s", ErrAmountOverflow, a.Token)
			}
			out[i].Amount += a.Amount
		}
	}
	return out, nil
}
