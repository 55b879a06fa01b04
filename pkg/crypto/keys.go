package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KeyID is the canonical identity of a key: Hash160 of its compressed
// serialization. Every import encoding of the same secret maps to one KeyID.
type KeyID [Hash160Size]byte

// String returns the hex-encoded key id.
func (k KeyID) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero returns true if the key id is all zeros.
func (k KeyID) IsZero() bool {
	return k == KeyID{}
}

// KeyIDFromBytes copies a 20-byte slice into a KeyID.
func KeyIDFromBytes(b []byte) (KeyID, error) {
	var id KeyID
	if len(b) != Hash160Size {
		return id, fmt.Errorf("key id must be %d bytes, got %d", Hash160Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// PublicKey is a parsed secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// ParsePublicKey parses a compressed (33-byte) or uncompressed (65-byte)
// public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// Compressed returns the 33-byte SEC1 compressed encoding.
func (p *PublicKey) Compressed() []byte {
	return p.key.SerializeCompressed()
}

// Uncompressed returns the 65-byte SEC1 uncompressed encoding.
func (p *PublicKey) Uncompressed() []byte {
	return p.key.SerializeUncompressed()
}

// ID returns the canonical key id.
func (p *PublicKey) ID() KeyID {
	var id KeyID
	copy(id[:], Hash160(p.Compressed()))
	return id
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("private key out of range")
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}, nil
}

// PrivateKeyFromHex parses a 64-character hex secret.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	return PrivateKeyFromBytes(b)
}

// PublicKey returns the public half of the key.
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}
