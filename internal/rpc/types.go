package rpc

import (
	"encoding/json"

	"github.com/Klingon-tech/defiledger/internal/chain"
	"github.com/Klingon-tech/defiledger/pkg/block"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application error codes, numbered as bitcoind-derived nodes number them.
const (
	CodeMisc                = -1
	CodeInvalidAddressOrKey = -5
	CodeInvalidParameter    = -8
	CodeVerifyRejected      = -26
)

// Request is a JSON-RPC 2.0 request. Params is a positional array or absent.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func invalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

func invalidParameter(msg string) *Error {
	return &Error{Code: CodeInvalidParameter, Message: msg}
}

// ── Option objects ──────────────────────────────────────────────────────

// HistoryOptions is the options object of listaccounthistory,
// listburnhistory and accounthistorycount.
type HistoryOptions struct {
	MaxBlockHeight *uint64 `json:"maxBlockHeight,omitempty"`
	Depth          *uint64 `json:"depth,omitempty"`
	Token          string  `json:"token,omitempty"`
	TxType         string  `json:"txtype,omitempty"`
	Start          *int    `json:"start,omitempty"`
	Limit          *int    `json:"limit,omitempty"`
}

// TokenMetadata is the first parameter of createtoken.
type TokenMetadata struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Collateral string `json:"collateralAddress"`
	Mintable   *bool  `json:"mintable,omitempty"`
}

// BurnRequest is the first parameter of burntokens.
type BurnRequest struct {
	Amounts json.RawMessage `json:"amounts"`
	From    string          `json:"from"`
}

// ── Results ─────────────────────────────────────────────────────────────

// ValidateAddressResult is returned by validateaddress.
type ValidateAddressResult struct {
	IsValid bool   `json:"isvalid"`
	Address string `json:"address,omitempty"`
	Space   string `json:"space,omitempty"`
	Type    string `json:"type,omitempty"`
	IsMine  bool   `json:"ismine"`
	// Convertible reports whether addressmap accepts the address type.
	Convertible bool   `json:"convertible"`
	KeyID       string `json:"keyid,omitempty"`
	Label       string `json:"label,omitempty"`
}

// BlockResult is returned by getblock.
type BlockResult struct {
	Hash              string   `json:"hash"`
	Height            uint64   `json:"height"`
	Version           uint32   `json:"version"`
	PreviousBlockHash string   `json:"previousblockhash,omitempty"`
	MerkleRoot        string   `json:"merkleroot"`
	Time              int64    `json:"time"`
	Tx                []string `json:"tx"`
}

// NewBlockResult summarizes a stored block.
func NewBlockResult(rec *chain.StoredBlock) *BlockResult {
	b := rec.Block
	txs := make([]string, len(b.Transactions))
	for i, h := range block.TxHashes(b.Transactions) {
		txs[i] = h.String()
	}
	res := &BlockResult{
		Hash:       b.Hash().String(),
		Height:     b.Header.Height,
		Version:    b.Header.Version,
		MerkleRoot: b.Header.MerkleRoot.String(),
		Time:       b.Header.Timestamp,
		Tx:         txs,
	}
	if b.Header.Height > 0 {
		res.PreviousBlockHash = b.Header.PrevHash.String()
	}
	return res
}

// IndexInfoResult is returned by getindexinfo.
type IndexInfoResult struct {
	Enabled bool   `json:"enabled"`
	Height  uint64 `json:"height"`
	Hash    string `json:"hash,omitempty"`
	Digest  string `json:"digest,omitempty"`
	Synced  bool   `json:"synced"`
}
