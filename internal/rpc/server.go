// Package rpc implements the JSON-RPC 2.0 API server.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/addressmap"
	"github.com/Klingon-tech/defiledger/internal/chain"
	"github.com/Klingon-tech/defiledger/internal/keystore"
	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/metrics"
	"github.com/Klingon-tech/defiledger/internal/wallet"
	"github.com/rs/zerolog"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

type handler func(p params) (interface{}, *Error)

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr    string
	chain   *chain.Chain
	keys    *keystore.Store
	mapper  *addressmap.Mapper
	metrics *metrics.Metrics
	cache   *resultCache // nil = no result caching

	walletMu sync.Mutex
	wallet   *wallet.Wallet // nil disables getnewaddress
	miner    string         // default generate target, created on first use

	methods map[string]handler
	access  accessPolicy
	server  *http.Server
	logger  zerolog.Logger
	ln      net.Listener
}

// New creates a new RPC server. A zero-value RPCConfig allows all IPs,
// disables CORS, caching and the metrics endpoint. m may be nil.
func New(addr string, ch *chain.Chain, keys *keystore.Store, rpcCfg config.RPCConfig, m *metrics.Metrics) *Server {
	s := &Server{
		addr:    addr,
		chain:   ch,
		keys:    keys,
		mapper:  addressmap.New(ch.Codec(), keys),
		metrics: m,
		logger:  klog.RPC,
		access:  newAccessPolicy(rpcCfg.AllowedIPs, rpcCfg.CORSOrigins),
	}
	if rpcCfg.Cache == config.CacheSmart {
		s.cache = newResultCache()
	}
	s.methods = map[string]handler{
		// Address mapping and keys.
		"addressmap":      s.handleAddressMap,
		"validateaddress": s.handleValidateAddress,
		"importprivkey":   s.handleImportPrivKey,
		"getnewaddress":   s.handleGetNewAddress,

		// History.
		"listcustomtxtypes":   s.handleListCustomTxTypes,
		"listaccounthistory":  s.handleListAccountHistory,
		"listburnhistory":     s.handleListBurnHistory,
		"accounthistorycount": s.handleAccountHistoryCount,
		"getindexinfo":        s.handleGetIndexInfo,

		// Tokens and accounts.
		"createtoken":      s.handleCreateToken,
		"minttokens":       s.handleMintTokens,
		"burntokens":       s.handleBurnTokens,
		"utxostoaccount":   s.handleUtxosToAccount,
		"accounttoaccount": s.handleAccountToAccount,
		"listtokens":       s.handleListTokens,
		"getaccount":       s.handleGetAccount,
		"getbalance":       s.handleGetBalance,

		// Chain.
		"generate":        s.handleGenerate,
		"getblockcount":   s.handleGetBlockCount,
		"getblockhash":    s.handleGetBlockHash,
		"getblock":        s.handleGetBlock,
		"invalidateblock": s.handleInvalidateBlock,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	if rpcCfg.Metrics && m != nil {
		h := m.Handler()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			if s.access.guard(w, r) {
				h.ServeHTTP(w, r)
			}
		})
	}

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	return s
}

// SetWallet enables HD address generation.
func (s *Server) SetWallet(w *wallet.Wallet) {
	s.walletMu.Lock()
	defer s.walletMu.Unlock()
	s.wallet = w
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("RPC server listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleRequest serves one JSON-RPC call per POST.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if !s.access.guard(w, r) {
		return
	}
	s.access.setCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	req, rpcErr := readRequest(r)
	if rpcErr != nil {
		var id interface{}
		if req != nil {
			id = req.ID
		}
		writeResponse(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: id})
		return
	}

	start := time.Now()
	result, rpcErr := s.dispatch(req)
	outcome := "ok"
	if rpcErr != nil {
		outcome = "error"
		s.logger.Debug().Str("method", req.Method).Int("code", rpcErr.Code).Msg(rpcErr.Message)
	}
	s.metrics.ObserveRPC(req.Method, outcome, time.Since(start).Seconds())

	resp := Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	if rpcErr == nil {
		resp.Result = result
	}
	writeResponse(w, resp)
}

// readRequest decodes and checks the envelope. The returned request is
// non-nil whenever its id could be recovered.
func readRequest(r *http.Request) (*Request, *Error) {
	if r.Method != http.MethodPost {
		return nil, &Error{Code: CodeInvalidRequest, Message: "only POST method is allowed"}
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, &Error{Code: CodeParseError, Message: "failed to read request body"}
	}
	if len(body) > maxBodySize {
		return nil, &Error{Code: CodeInvalidRequest, Message: "request body too large"}
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &Error{Code: CodeParseError, Message: "invalid JSON"}
	}
	if req.JSONRPC != "2.0" {
		return &req, &Error{Code: CodeInvalidRequest, Message: `jsonrpc must be "2.0"`}
	}
	return &req, nil
}

// dispatch routes a request to its handler, consulting the result cache
// for cacheable methods.
func (s *Server) dispatch(req *Request) (interface{}, *Error) {
	h, ok := s.methods[req.Method]
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	p, rpcErr := parseParams(req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if s.cache == nil || !cacheable[req.Method] {
		return h(p)
	}
	state := s.cacheState()
	key := req.Method + string(req.Params)
	if v, ok := s.cache.get(state, key); ok {
		return v, nil
	}
	v, rpcErr := h(p)
	if rpcErr == nil {
		s.cache.put(state, key, v)
	}
	return v, rpcErr
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
