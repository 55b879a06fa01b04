package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile reads key = value pairs from a .conf file. Blank lines and lines
// starting with # are skipped, and a missing file yields no values.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", n)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return values, scanner.Err()
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

type setter func(cfg *Config, value string) error

func text(field func(*Config) *string) setter {
	return func(c *Config, v string) error { *field(c) = v; return nil }
}

func lower(field func(*Config) *string) setter {
	return func(c *Config, v string) error { *field(c) = strings.ToLower(v); return nil }
}

func boolean(field func(*Config) *bool) setter {
	return func(c *Config, v string) error { *field(c) = parseBool(v); return nil }
}

func list(field func(*Config) *[]string) setter {
	return func(c *Config, v string) error { *field(c) = parseStringList(v); return nil }
}

func number(field func(*Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

// configKeys maps every accepted key, including the bitcoind-style aliases,
// to its setter. Chain parameters are deliberately absent, except for the
// fork.<name> overrides handled in setConfigValue.
var configKeys = map[string]setter{
	"network": func(c *Config, v string) error { c.Network = NetworkType(strings.ToLower(v)); return nil },
	"datadir": text(func(c *Config) *string { return &c.DataDir }),

	"db.backend": lower(func(c *Config) *string { return &c.DB.Backend }),

	"rpc.enabled": boolean(func(c *Config) *bool { return &c.RPC.Enabled }),
	"rpc.addr":    text(func(c *Config) *string { return &c.RPC.Addr }),
	"rpc.port":    number(func(c *Config) *int { return &c.RPC.Port }),
	"rpc.allowed": list(func(c *Config) *[]string { return &c.RPC.AllowedIPs }),
	"rpc.cors":    list(func(c *Config) *[]string { return &c.RPC.CORSOrigins }),
	"rpc.cache":   lower(func(c *Config) *string { return &c.RPC.Cache }),
	"rpc.metrics": boolean(func(c *Config) *bool { return &c.RPC.Metrics }),

	"wallet.enabled":    boolean(func(c *Config) *bool { return &c.Wallet.Enabled }),
	"wallet.file":       text(func(c *Config) *string { return &c.Wallet.FilePath }),
	"wallet.passphrase": text(func(c *Config) *string { return &c.Wallet.Passphrase }),

	"index.account": boolean(func(c *Config) *bool { return &c.Index.Account }),

	"log.level":       text(func(c *Config) *string { return &c.Log.Level }),
	"log.file":        text(func(c *Config) *string { return &c.Log.File }),
	"log.json":        boolean(func(c *Config) *bool { return &c.Log.JSON }),
	"log.max_size_mb": number(func(c *Config) *int { return &c.Log.MaxSizeMB }),
	"log.max_backups": number(func(c *Config) *int { return &c.Log.MaxBackups }),
}

var keyAliases = map[string]string{
	"rpc":        "rpc.enabled",
	"server":     "rpc.enabled",
	"rpcbind":    "rpc.addr",
	"rpcport":    "rpc.port",
	"rpcallowip": "rpc.allowed",
	"rpc-cache":  "rpc.cache",
	"wallet":     "wallet.enabled",
	"acindex":    "index.account",
}

// setConfigValue sets a node config value by key. Unknown keys are ignored.
func setConfigValue(cfg *Config, key, value string) error {
	if canonical, ok := keyAliases[key]; ok {
		key = canonical
	}
	if set, ok := configKeys[key]; ok {
		return set(cfg, value)
	}
	if name, ok := strings.CutPrefix(key, "fork."); ok {
		h, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		if cfg.ForkHeights == nil {
			cfg.ForkHeights = make(map[string]uint64)
		}
		cfg.ForkHeights[name] = h
	}
	return nil
}

// parseBool accepts true/1/yes/on in any case; everything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseStringList splits a comma-separated list, dropping empty entries.
func parseStringList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# DefiLedger Node Configuration
#
# This file contains NODE settings only. Chain parameters (address
# prefixes, burn address, fork heights) are fixed per network; regtest
# alone accepts fork.<name> overrides.

# Network: mainnet, testnet or regtest
network = ` + string(network) + `

# Data directory (default: ~/.defiledger)
# datadir = ~/.defiledger

# ============================================================================
# Storage
# ============================================================================

# Backend: badger (default), leveldb or memory
db.backend = badger

# ============================================================================
# RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + defaultRPCPort(network) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000

# Result cache: none or smart (drop cached results on every new tip)
rpc.cache = smart

# Serve Prometheus metrics at /metrics
# rpc.metrics = false

# ============================================================================
# Wallet
# ============================================================================

wallet.enabled = true
# wallet.file = wallet.dat
# wallet.passphrase =

# ============================================================================
# History index
# ============================================================================

index.account = true

# ============================================================================
# Forks (regtest only)
# ============================================================================

# fork.grandcentral = 101
# fork.nextupgrade = 105

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
log.max_size_mb = 100
log.max_backups = 5
`
	return os.WriteFile(path, []byte(content), 0644)
}

func defaultRPCPort(network NetworkType) string {
	return strconv.Itoa(Default(network).RPC.Port)
}
