// Package crypto provides the hash functions and key types used to derive
// addresses in both address spaces.
package crypto

import (
	"github.com/Klingon-tech/defiledger/pkg/types"
	"github.com/btcsuite/btcutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"
)

// Hash160Size is the length of a RIPEMD160(SHA256(x)) digest.
const Hash160Size = 20

// Hash computes a BLAKE3-256 hash of the input data.
// It is used for node-local identifiers (block hashes, index digests),
// never for address derivation.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// HashConcat hashes the concatenation of two hashes.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// Hash160 computes RIPEMD160(SHA256(data)), the primary-space key hash.
func Hash160(data []byte) []byte {
	return btcutil.Hash160(data)
}

// Keccak256 computes the legacy Keccak-256 digest used by the secondary space.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}
