// Package address encodes, decodes and derives addresses in the primary
// (base58check, bech32) and secondary (0x hex) spaces.
package address

import "fmt"

// Params holds the per-network encoding constants.
type Params struct {
	Name             string
	Bech32HRP        string
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	PrivateKeyID     byte
}

// Network parameter sets.
var (
	MainNetParams = Params{
		Name:             "mainnet",
		Bech32HRP:        "df",
		PubKeyHashAddrID: 18,
		ScriptHashAddrID: 90,
		PrivateKeyID:     128,
	}
	TestNetParams = Params{
		Name:             "testnet",
		Bech32HRP:        "tf",
		PubKeyHashAddrID: 15,
		ScriptHashAddrID: 128,
		PrivateKeyID:     239,
	}
	RegTestParams = Params{
		Name:             "regtest",
		Bech32HRP:        "bcrt",
		PubKeyHashAddrID: 111,
		ScriptHashAddrID: 196,
		PrivateKeyID:     239,
	}
)

// ParamsFor returns the parameter set for a network name.
func ParamsFor(network string) (*Params, error) {
	switch network {
	case "mainnet", "main":
		p := MainNetParams
		return &p, nil
	case "testnet", "test":
		p := TestNetParams
		return &p, nil
	case "regtest":
		p := RegTestParams
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}
