package config

import (
	"fmt"

	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/internal/txtype"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Regtest:
	default:
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Testnet, Regtest)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	switch cfg.DB.Backend {
	case storage.BackendBadger, storage.BackendLevelDB, storage.BackendMemory:
	case "":
		cfg.DB.Backend = storage.BackendBadger
	default:
		return fmt.Errorf("db.backend must be badger, leveldb or memory")
	}

	switch cfg.RPC.Cache {
	case CacheNone, CacheSmart:
	case "":
		cfg.RPC.Cache = CacheNone
	default:
		return fmt.Errorf("rpc.cache must be none or smart")
	}

	if cfg.Log.Level != "" && !klog.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_size_mb and log.max_backups must not be negative")
	}

	if len(cfg.ForkHeights) > 0 && cfg.Network != Regtest {
		return fmt.Errorf("fork height overrides are only allowed on regtest")
	}
	for name := range cfg.ForkHeights {
		if !knownFork(name) {
			return fmt.Errorf("unknown fork %q", name)
		}
	}

	return nil
}

func knownFork(name string) bool {
	for _, f := range txtype.Forks {
		if f == name {
			return true
		}
	}
	return false
}
