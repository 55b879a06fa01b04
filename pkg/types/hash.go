// Package types defines core primitive types shared by the ledger packages.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HashSize is the length of a block or transaction hash in bytes.
const HashSize = 32

// ErrInvalidHash is returned for hash text or bytes of the wrong shape.
var ErrInvalidHash = errors.New("invalid hash")

// Hash identifies a block or a transaction. It is shown as 64 lowercase
// hex characters, in digest byte order.
type Hash [HashSize]byte

// IsZero reports whether h is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short is the first eight bytes of h, for log lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:8])
}

// MarshalText makes Hash a hex string in JSON and usable as a map key.
func (h Hash) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(HashSize))
	hex.Encode(out, h[:])
	return out, nil
}

// UnmarshalText accepts what ParseHash accepts. Empty text is the zero hash.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Hash{}
		return nil
	}
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes 64 hex characters, in either case, with an optional
// 0x prefix.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != hex.EncodedLen(HashSize) {
		return Hash{}, fmt.Errorf("%w: want %d hex characters, got %d", ErrInvalidHash, hex.EncodedLen(HashSize), len(s))
	}
	var h Hash
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return h, nil
}

// HashFromBytes copies a stored digest, rejecting any other length.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHash, len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}
