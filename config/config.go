// Package config handles node configuration.
//
// Configuration is split into two categories:
//   - Chain parameters: per-network constants (address prefixes, burn sink,
//     fork heights) that must match across nodes, see params.go
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// NetworkType identifies mainnet, testnet or regtest.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Regtest NetworkType = "regtest"
)

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Storage
	DB DBConfig

	// RPC server
	RPC RPCConfig

	// Wallet
	Wallet WalletConfig

	// History index
	Index IndexConfig

	// Logging
	Log LogConfig

	// ForkHeights overrides the network's fork activation heights
	// (fork.<name> = height). Only honored on regtest.
	ForkHeights map[string]uint64
}

// DBConfig selects the storage backend.
type DBConfig struct {
	Backend string `conf:"db.backend"` // badger, leveldb or memory
}

// RPC cache modes.
const (
	CacheNone  = "none"
	CacheSmart = "smart"
)

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"`  // Allowed CORS origins ("*" = all).
	Cache       string   `conf:"rpc.cache"` // none or smart
	Metrics     bool     `conf:"rpc.metrics"`
}

// WalletConfig holds wallet settings.
type WalletConfig struct {
	Enabled    bool   `conf:"wallet.enabled"`
	FilePath   string `conf:"wallet.file"`
	Passphrase string `conf:"wallet.passphrase"`
}

// IndexConfig holds history index settings.
type IndexConfig struct {
	Account bool `conf:"index.account"` // acindex
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `conf:"log.level"`
	File       string `conf:"log.file"`
	JSON       bool   `conf:"log.json"`
	MaxSizeMB  int    `conf:"log.max_size_mb"`
	MaxBackups int    `conf:"log.max_backups"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.defiledger
//	macOS:   ~/Library/Application Support/DefiLedger
//	Windows: %APPDATA%\DefiLedger
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".defiledger"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "DefiLedger")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "DefiLedger")
		}
		return filepath.Join(home, "AppData", "Roaming", "DefiLedger")
	default:
		return filepath.Join(home, ".defiledger")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the node database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.ChainDataDir(), "db")
}

// WalletDir returns the wallet storage directory.
func (c *Config) WalletDir() string {
	return filepath.Join(c.ChainDataDir(), "wallet")
}

// WalletFile returns the wallet seed file path.
func (c *Config) WalletFile() string {
	if c.Wallet.FilePath != "" {
		if filepath.IsAbs(c.Wallet.FilePath) {
			return c.Wallet.FilePath
		}
		return filepath.Join(c.WalletDir(), c.Wallet.FilePath)
	}
	return filepath.Join(c.WalletDir(), "wallet.dat")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "ledger.conf")
}

// RPCListenAddr returns host:port for the RPC listener.
func (c *Config) RPCListenAddr() string {
	return net.JoinHostPort(c.RPC.Addr, strconv.Itoa(c.RPC.Port))
}
