package wallet

import (
	"fmt"

	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 path: m/44'/1129'/account'/change/index.
const (
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeDFI is the SLIP-44 coin type of the native chain.
	CoinTypeDFI = bip32.FirstHardenedChild + 1129

	ChangeExternal = 0
	ChangeInternal = 1
)

// HDKey is a BIP-32 extended key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath derives a key along a sequence of child indices. Add
// bip32.FirstHardenedChild to an index for hardened derivation.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k.key
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return &HDKey{key: current}, nil
}

// DeriveAccountKey derives m/44'/1129'/account'/change/index.
func (k *HDKey) DeriveAccountKey(account, change, index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinTypeDFI,
		bip32.FirstHardenedChild+account,
		change,
		index,
	)
}

// PrivateKey returns the secp256k1 private key of a private extended key.
func (k *HDKey) PrivateKey() (*crypto.PrivateKey, error) {
	if !k.key.IsPrivate {
		return nil, fmt.Errorf("public extended key has no private key")
	}
	raw := k.key.Key
	// bip32 pads private keys to 33 bytes with a leading zero.
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	return crypto.PrivateKeyFromBytes(raw)
}

// PublicKey returns the parsed public key.
func (k *HDKey) PublicKey() (*crypto.PublicKey, error) {
	return crypto.ParsePublicKey(k.key.PublicKey().Key)
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}
