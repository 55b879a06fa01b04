package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Known digests for each hash family the ledger uses.
func TestHashVectors(t *testing.T) {
	// Compressed public key of the first address-map vector key.
	pub, _ := hex.DecodeString("03a21d814a6882a3636ce7727b22d16bab7858d504061bb8503e63782f50ca5057")

	tests := []struct {
		name string
		got  func() []byte
		want string
	}{
		{"blake3 empty", func() []byte { h := Hash(nil); return h[:] },
			"af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{"blake3 hello", func() []byte { h := Hash([]byte("hello")); return h[:] },
			"ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f"},
		{"hash160 vector key", func() []byte { return Hash160(pub) },
			"ddc202dcc86a3ee9775c1f305512793e6c6fc904"},
		{"keccak256 empty", func() []byte { return Keccak256(nil) },
			"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hex.EncodeToString(tt.got()); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHash160Size(t *testing.T) {
	if n := len(Hash160([]byte("x"))); n != Hash160Size {
		t.Errorf("Hash160 length = %d, want %d", n, Hash160Size)
	}
}

// Merkle roots depend on HashConcat being ordered.
func TestHashConcat(t *testing.T) {
	a := Hash([]byte("left"))
	b := Hash([]byte("right"))

	var buf [2 * types.HashSize]byte
	copy(buf[:types.HashSize], a[:])
	copy(buf[types.HashSize:], b[:])
	if got := HashConcat(a, b); got != Hash(buf[:]) {
		t.Errorf("HashConcat(a, b) = %s, want hash of a||b", got)
	}
	if HashConcat(a, b) == HashConcat(b, a) {
		t.Error("HashConcat is not ordered")
	}
}
