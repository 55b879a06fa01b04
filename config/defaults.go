package config

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		DB: DBConfig{
			Backend: "badger",
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8554,
			AllowedIPs: []string{"127.0.0.1"},
			Cache:      CacheSmart,
		},
		Wallet: WalletConfig{
			Enabled: true,
		},
		Index: IndexConfig{
			Account: true,
		},
		Log: LogConfig{
			Level:      "info",
			JSON:       false,
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = 18554
	return cfg
}

// DefaultRegtest returns the default node configuration for regtest.
func DefaultRegtest() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Regtest
	cfg.RPC.Port = 19554
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case Regtest:
		return DefaultRegtest()
	default:
		return DefaultMainnet()
	}
}
