// Package token keeps the metadata of user-created tokens.
//
// Tokens are numbered. Id 0 is the native coin, ids below FirstUserID are
// reserved, and each CreateToken takes the next free id. A token is
// referenced either by its symbol or by its decimal id.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Klingon-tech/defiledger/pkg/types"
)

// FirstUserID is the id given to the first created token.
const FirstUserID types.TokenID = 128

// Symbol and name limits.
const (
	MaxSymbolLength = 8
	MaxNameLength   = 128
)

// Token validation errors.
var (
	ErrInvalidSymbol = errors.New("invalid token symbol")
	ErrInvalidName   = errors.New("invalid token name")
	ErrSymbolTaken   = errors.New("token symbol already exists")
	ErrNotFound      = errors.New("token not found")
)

// Token is the metadata of one token.
type Token struct {
	ID             types.TokenID `json:"id"`
	Symbol         string        `json:"symbol"`
	Name           string        `json:"name"`
	Collateral     string        `json:"collateralAddress"`
	Mintable       bool          `json:"mintable"`
	CreationTx     string        `json:"creationTx"`
	CreationHeight uint64        `json:"creationHeight"`
}

// IsNative reports whether t is the chain's own coin.
func (t *Token) IsNative() bool {
	return t.ID == 0
}

// Native returns the metadata of the native coin.
func Native(symbol string) *Token {
	return &Token{Symbol: symbol, Name: "Default Defi token", Mintable: false}
}

// NormalizeSymbol upper-cases and checks a symbol: 1 to 8 characters of
// letters, digits and '.', not purely numeric so it never reads as an id.
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || len(s) > MaxSymbolLength {
		return "", fmt.Errorf("%w: length must be 1 to %d", ErrInvalidSymbol, MaxSymbolLength)
	}
	digits := true
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r == '.':
			digits = false
		case r >= '0' && r <= '9':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	if digits {
		return "", fmt.Errorf("%w: %q is numeric", ErrInvalidSymbol, s)
	}
	return s, nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	return nil
}

// ParseID reports whether ref is a decimal token id.
func ParseID(ref string) (types.TokenID, bool) {
	n, err := strconv.ParseUint(ref, 10, 32)
	if err != nil {
		return 0, false
	}
	return types.TokenID(n), true
}
