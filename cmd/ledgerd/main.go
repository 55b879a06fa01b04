// DefiLedger node daemon.
//
// Usage:
//
//	ledgerd [--regtest --fork grandcentral=101 ...] Run node
//	ledgerd --help                                  Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/node"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if m := n.Mnemonic(); m != "" {
		fmt.Fprintf(os.Stderr, "\nA new wallet was created at %s.\nWrite down its recovery phrase:\n\n  %s\n\n", cfg.WalletFile(), m)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}
