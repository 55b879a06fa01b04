package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/storage"
)

// PassphraseEnv overrides wallet.passphrase from the config file.
const PassphraseEnv = "LEDGER_WALLET_PASSPHRASE"

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// resolveLogFile returns the rotated log file path, creating the logs
// directory when the default location is used.
func resolveLogFile(cfg *config.Config) (string, error) {
	if cfg.Log.File != "" {
		return expandHome(cfg.Log.File), nil
	}
	logsDir := cfg.LogsDir()
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return "", fmt.Errorf("creating logs dir: %w", err)
	}
	return filepath.Join(logsDir, "ledger.log"), nil
}

// walletPassphrase returns the wallet passphrase, preferring the
// environment over the config file.
func walletPassphrase(cfg *config.Config) []byte {
	if p, ok := os.LookupEnv(PassphraseEnv); ok {
		return []byte(p)
	}
	return []byte(cfg.Wallet.Passphrase)
}

func backendName(backend string) string {
	if backend == "" {
		return storage.BackendBadger
	}
	return backend
}
