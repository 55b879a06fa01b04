package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// ErrWIFNetwork is returned when a WIF string carries another network's prefix.
var ErrWIFNetwork = errors.New("wif belongs to a different network")

// DecodeWIF decodes a base58check wallet-import-format secret. version is the
// network's secret key prefix. The returned flag reports whether the WIF
// asked for the compressed public key.
func DecodeWIF(s string, version byte) (*PrivateKey, bool, error) {
	payload, ver, err := base58.CheckDecode(s)
	if err != nil {
		return nil, false, fmt.Errorf("decode wif: %w", err)
	}
	if ver != version {
		return nil, false, ErrWIFNetwork
	}

	compressed := false
	switch {
	case len(payload) == 33 && payload[32] == 0x01:
		compressed = true
		payload = payload[:32]
	case len(payload) == 32:
	default:
		return nil, false, fmt.Errorf("decode wif: bad payload length %d", len(payload))
	}

	pk, err := PrivateKeyFromBytes(payload)
	if err != nil {
		return nil, false, err
	}
	return pk, compressed, nil
}

// EncodeWIF encodes a private key in wallet-import format.
func EncodeWIF(pk *PrivateKey, version byte, compressed bool) string {
	payload := pk.Serialize()
	if compressed {
		payload = append(payload, 0x01)
	}
	return base58.CheckEncode(payload, version)
}
