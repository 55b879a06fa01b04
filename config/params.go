package config

import (
	"fmt"

	"github.com/Klingon-tech/defiledger/internal/txtype"
	"github.com/Klingon-tech/defiledger/pkg/address"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// NativeToken is the symbol of token id 0.
const NativeToken = "DFI"

// ChainParams holds the per-network constants the ledger works with.
// These MUST match across nodes of one network.
type ChainParams struct {
	Network NetworkType
	Address address.Params

	// BurnAddress is the sink that destroyed supply is sent to.
	BurnAddress string

	// ForkHeights maps fork name to activation height. A fork missing
	// from the map is not scheduled.
	ForkHeights map[string]uint64

	// TokenCreationFee is burnt by every CreateToken.
	TokenCreationFee types.Amount

	// BlockReward is credited to the block producer's account.
	BlockReward types.Amount

	// MineOnDemand enables the generate command.
	MineOnDemand bool
}

// MainnetParams returns the mainnet chain parameters.
func MainnetParams() *ChainParams {
	return &ChainParams{
		Network:     Mainnet,
		Address:     address.MainNetParams,
		BurnAddress: "8defichainBurnAddressXXXXXXXdRQkSm",
		ForkHeights: map[string]uint64{
			txtype.ForkAMK:          356500,
			txtype.ForkBayfront:     405000,
			txtype.ForkEunos:        894000,
			txtype.ForkFortCanning:  1367000,
			txtype.ForkGrandCentral: 2479000,
		},
		TokenCreationFee: 100 * types.Coin,
		BlockReward:      200 * types.Coin,
	}
}

// TestnetParams returns the testnet chain parameters.
func TestnetParams() *ChainParams {
	return &ChainParams{
		Network:     Testnet,
		Address:     address.TestNetParams,
		BurnAddress: "7DefichainBurnAddressXXXXXXXdMUE5n",
		ForkHeights: map[string]uint64{
			txtype.ForkAMK:          150,
			txtype.ForkBayfront:     3000,
			txtype.ForkEunos:        354950,
			txtype.ForkFortCanning:  686200,
			txtype.ForkGrandCentral: 1366000,
		},
		TokenCreationFee: 100 * types.Coin,
		BlockReward:      200 * types.Coin,
	}
}

// RegtestParams returns the regtest chain parameters. Every fork is active
// from genesis unless overridden.
func RegtestParams() *ChainParams {
	forks := make(map[string]uint64, len(txtype.Forks))
	for _, f := range txtype.Forks {
		forks[f] = 0
	}
	return &ChainParams{
		Network:          Regtest,
		Address:          address.RegTestParams,
		BurnAddress:      "mfburnZSAM7Gs1hpDeNaMotJXSGA7edosG",
		ForkHeights:      forks,
		TokenCreationFee: 1 * types.Coin,
		BlockReward:      50 * types.Coin,
		MineOnDemand:     true,
	}
}

// ParamsFor returns the chain parameters of a network.
func ParamsFor(network NetworkType) (*ChainParams, error) {
	switch network {
	case Mainnet:
		return MainnetParams(), nil
	case Testnet:
		return TestnetParams(), nil
	case Regtest:
		return RegtestParams(), nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// ParamsForConfig returns the chain parameters of cfg's network with any
// regtest fork overrides applied.
func ParamsForConfig(cfg *Config) (*ChainParams, error) {
	p, err := ParamsFor(cfg.Network)
	if err != nil {
		return nil, err
	}
	if cfg.Network == Regtest {
		for name, h := range cfg.ForkHeights {
			p.ForkHeights[name] = h
		}
	}
	return p, nil
}
