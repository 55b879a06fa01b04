// Package node provides a reusable ledger node that can be embedded
// in any binary (daemon, tests, etc.).
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/chain"
	"github.com/Klingon-tech/defiledger/internal/history"
	"github.com/Klingon-tech/defiledger/internal/keystore"
	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/metrics"
	"github.com/Klingon-tech/defiledger/internal/rpc"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/internal/txtype"
	"github.com/Klingon-tech/defiledger/internal/wallet"
	"github.com/rs/zerolog"
)

// Storage namespaces owned by the node rather than the chain.
var (
	nsHistory = []byte("h/")
	nsKeys    = []byte("k/")
)

// Node is a fully-initialized ledger node.
type Node struct {
	cfg    *config.Config
	params *config.ChainParams
	logger zerolog.Logger

	// Core
	db       storage.DB
	metrics  *metrics.Metrics
	keys     *keystore.Store
	wallet   *wallet.Wallet
	mnemonic string
	index    *history.Indexer
	ch       *chain.Chain

	// RPC
	rpcServer *rpc.Server
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, keys, wallet, index, chain) but does NOT start the
// RPC listener. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile, err := resolveLogFile(cfg)
	if err != nil {
		return nil, err
	}
	klog.Init(klog.Options{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	logger := klog.WithComponent("node")

	// ── 2. Chain parameters ─────────────────────────────────────────
	params, err := config.ParamsForConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("network", string(cfg.Network)).
		Str("hrp", params.Address.Bech32HRP).
		Bool("mine_on_demand", params.MineOnDemand).
		Msg("Starting DefiLedger node")

	// ── 3. Open storage ─────────────────────────────────────────────
	db, err := storage.Open(cfg.DB.Backend, cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
	}
	logger.Info().Str("backend", backendName(cfg.DB.Backend)).Str("path", cfg.DBDir()).Msg("Database opened")

	n := &Node{
		cfg:     cfg,
		params:  params,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}
	if err := n.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

func (n *Node) setup() error {
	cfg := n.cfg

	// ── 4. Operation types ──────────────────────────────────────────
	registry, err := txtype.New(n.params.ForkHeights)
	if err != nil {
		return fmt.Errorf("create type registry: %w", err)
	}

	// ── 5. History index ────────────────────────────────────────────
	if cfg.Index.Account {
		n.index, err = history.NewIndexer(storage.NewPrefixDB(n.db, nsHistory), registry, n.metrics)
		if err != nil {
			return fmt.Errorf("open history index: %w", err)
		}
	} else {
		n.logger.Warn().Msg("Account history index disabled; history RPCs unavailable")
	}

	// ── 6. Chain ────────────────────────────────────────────────────
	n.ch, err = chain.New(n.db, n.params, registry, n.index)
	if err != nil {
		return fmt.Errorf("create chain: %w", err)
	}
	n.logger.Info().
		Uint64("height", n.ch.Height()).
		Str("tip", n.ch.TipHash().Short()).
		Msg("Chain loaded")

	// ── 7. Key store ────────────────────────────────────────────────
	n.keys = keystore.New(n.ch.Codec(), storage.NewPrefixDB(n.db, nsKeys), n.metrics)
	if err := n.keys.Load(); err != nil {
		return fmt.Errorf("load key store: %w", err)
	}
	n.logger.Info().Int("keys", n.keys.Len()).Msg("Key store loaded")

	// ── 8. Wallet ───────────────────────────────────────────────────
	if cfg.Wallet.Enabled {
		path := cfg.WalletFile()
		n.wallet, n.mnemonic, err = wallet.Open(path, walletPassphrase(cfg), wallet.DefaultKDFParams())
		if err != nil {
			return fmt.Errorf("open wallet %s: %w", path, err)
		}
		if n.mnemonic != "" {
			n.logger.Warn().Str("path", path).Msg("New wallet created; back up its mnemonic")
		} else {
			n.logger.Info().Str("path", path).Uint32("next_index", n.wallet.NextIndex()).Msg("Wallet opened")
		}
	}

	// ── 9. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		n.rpcServer = rpc.New(cfg.RPCListenAddr(), n.ch, n.keys, cfg.RPC, n.metrics)
		if n.wallet != nil {
			n.rpcServer.SetWallet(n.wallet)
		}
	} else {
		if cfg.Wallet.Enabled {
			n.logger.Warn().Msg("wallet.enabled is true but RPC is disabled; wallet RPC endpoints unavailable")
		}
		n.logger.Warn().Msg("RPC disabled by config")
	}
	return nil
}

// Start launches the RPC listener.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start RPC at %s: %w", n.cfg.RPCListenAddr(), err)
		}
		n.logger.Info().
			Str("addr", n.rpcServer.Addr()).
			Str("cache", n.cfg.RPC.Cache).
			Bool("metrics", n.cfg.RPC.Metrics).
			Msg("RPC server started")
	}

	n.logger.Info().
		Uint64("height", n.ch.Height()).
		Bool("acindex", n.index != nil).
		Bool("wallet", n.wallet != nil).
		Msg("Node started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	if n.rpcServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n.rpcServer.Stop(ctx)
		cancel()
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Error().Err(err).Msg("Closing database")
		}
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	return n.ch.Height()
}

// Chain returns the node's chain.
func (n *Node) Chain() *chain.Chain { return n.ch }

// Keys returns the node's key store.
func (n *Node) Keys() *keystore.Store { return n.keys }

// Mnemonic returns the recovery phrase of a wallet created by this start,
// or "" if the wallet already existed or is disabled.
func (n *Node) Mnemonic() string { return n.mnemonic }
