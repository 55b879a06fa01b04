package types

import (
	"bytes"
	"encoding/json"
)

// Space identifies one of the two address spaces a key can be named in.
type Space uint8

const (
	// SpacePrimary is the base58check / bech32 UTXO-style space.
	SpacePrimary Space = iota + 1
	// SpaceSecondary is the 0x-prefixed account space.
	SpaceSecondary
)

// String returns a short name for the space.
func (s Space) String() string {
	switch s {
	case SpacePrimary:
		return "primary"
	case SpaceSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// AddressType is the structural type of an address within its space.
type AddressType uint8

const (
	TypeUnknown AddressType = iota
	// TypePubKeyHash is a base58check pay-to-pubkey-hash address.
	TypePubKeyHash
	// TypeScriptHash is a base58check pay-to-script-hash address. It may wrap
	// a single key (p2sh-segwit) but the script is opaque to the codec.
	TypeScriptHash
	// TypeWitnessPubKeyHash is a bech32 witness v0 key-hash address.
	TypeWitnessPubKeyHash
	// TypeWitnessScriptHash is a bech32 witness v0 script-hash address.
	TypeWitnessScriptHash
	// TypeKeyHash is a secondary-space externally owned account.
	TypeKeyHash
)

var addressTypeNames = map[AddressType]string{
	TypeUnknown:           "unknown",
	TypePubKeyHash:        "legacy",
	TypeScriptHash:        "p2sh",
	TypeWitnessPubKeyHash: "bech32",
	TypeWitnessScriptHash: "p2wsh",
	TypeKeyHash:           "eth",
}

// String returns the wallet-facing name of the type.
func (t AddressType) String() string {
	if n, ok := addressTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// IsSingleKey reports whether the type commits directly to one public key hash.
func (t AddressType) IsSingleKey() bool {
	return t == TypePubKeyHash || t == TypeWitnessPubKeyHash || t == TypeKeyHash
}

// Address is a decoded address: its space, structural type, raw payload
// (the 20-byte hash for every single-key form) and canonical text.
type Address struct {
	Space   Space
	Type    AddressType
	Payload []byte
	Text    string
}

// IsZero returns true if the payload is empty or all zeros.
func (a Address) IsZero() bool {
	for _, b := range a.Payload {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether two addresses name the same payload in the same
// space with the same type.
func (a Address) Equal(o Address) bool {
	return a.Space == o.Space && a.Type == o.Type && bytes.Equal(a.Payload, o.Payload)
}

// String returns the address text.
func (a Address) String() string {
	return a.Text
}

// MarshalJSON encodes the address as its text.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Text)
}
