// Package addressmap converts an address between the primary and secondary
// spaces when the node holds the key behind it.
package addressmap

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/defiledger/internal/keystore"
	"github.com/Klingon-tech/defiledger/pkg/address"
	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// ErrInvalidParameter covers unparsable addresses, unknown directions,
// direction/space mismatches and ineligible address types.
var ErrInvalidParameter = errors.New("invalid type parameter")

// KeyNotFoundError reports a well-formed address whose key is not held.
type KeyNotFoundError struct {
	Address string
	// Null is set when the address payload is all zeros and so cannot
	// belong to any key.
	Null bool
}

func (e *KeyNotFoundError) Error() string {
	if e.Null {
		return e.Address + " does not refer to a key"
	}
	return "no full public key for address " + e.Address
}

// KeySource answers key ownership for decoded addresses.
type KeySource interface {
	HasKey(addr types.Address) bool
	PublicKey(addr types.Address) (keystore.PublicKeyRecord, error)
}

// Mapper performs address conversion. It never writes.
type Mapper struct {
	codec *address.Codec
	keys  KeySource
}

// New creates a mapper over the given codec and key source.
func New(codec *address.Codec, keys KeySource) *Mapper {
	return &Mapper{codec: codec, keys: keys}
}

// Map converts text into the counterpart address of the same key. The
// result depends only on the key and the target space: every eligible form
// of one key maps to the same output, and primary-space output is always
// the bech32 key-hash form.
func (m *Mapper) Map(text string, dir Direction) (string, error) {
	if _, err := ParseDirection(int64(dir)); err != nil {
		return "", err
	}

	addr, err := m.codec.Decode(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	target, err := targetSpace(addr.Space, dir)
	if err != nil {
		return "", err
	}
	if !address.IsEligibleForConversion(addr) {
		return "", fmt.Errorf("%w: %s addresses cannot be converted", ErrInvalidParameter, addr.Type)
	}
	if addr.IsZero() {
		return "", &KeyNotFoundError{Address: text, Null: true}
	}
	if !m.keys.HasKey(addr) {
		return "", &KeyNotFoundError{Address: text}
	}

	rec, err := m.keys.PublicKey(addr)
	if err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return "", &KeyNotFoundError{Address: text}
		}
		return "", err
	}
	pub, err := crypto.ParsePublicKey(rec.Compressed)
	if err != nil {
		return "", fmt.Errorf("stored key %s: %w", rec.ID, err)
	}
	out, err := m.codec.Canonical(pub, target)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func targetSpace(from types.Space, dir Direction) (types.Space, error) {
	switch dir {
	case Auto:
		if from == types.SpacePrimary {
			return types.SpaceSecondary, nil
		}
		return types.SpacePrimary, nil
	case PrimaryToSecondary:
		if from != types.SpacePrimary {
			return 0, fmt.Errorf("%w: %s address with %s", ErrInvalidParameter, from, dir)
		}
		return types.SpaceSecondary, nil
	case SecondaryToPrimary:
		if from != types.SpaceSecondary {
			return 0, fmt.Errorf("%w: %s address with %s", ErrInvalidParameter, from, dir)
		}
		return types.SpacePrimary, nil
	}
	return 0, fmt.Errorf("%w: direction %d", ErrInvalidParameter, int(dir))
}
