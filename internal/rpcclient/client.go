// Package rpcclient provides a JSON-RPC 2.0 client for ledger nodes.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/defiledger/internal/history"
)

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 10*time.Second)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC 2.0 request. Params are always positional.
type request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the server error code carried by err, or 0.
func ErrorCode(err error) int {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return 0
}

// Call invokes a JSON-RPC method with positional params and unmarshals the
// result into the provided pointer. If result is nil, the result is discarded.
func (c *Client) Call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("http request: %s", resp.Status)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// HistoryOptions narrows a history query. Nil fields are left to the node.
type HistoryOptions struct {
	MaxBlockHeight *uint64 `json:"maxBlockHeight,omitempty"`
	Depth          *uint64 `json:"depth,omitempty"`
	Token          string  `json:"token,omitempty"`
	TxType         string  `json:"txtype,omitempty"`
	Start          *int    `json:"start,omitempty"`
	Limit          *int    `json:"limit,omitempty"`
}

// AddressMap returns the counterpart of addr in the other address space.
func (c *Client) AddressMap(ctx context.Context, addr string, direction int) (string, error) {
	var out string
	err := c.Call(ctx, "addressmap", &out, addr, direction)
	return out, err
}

// ListCustomTxTypes returns the active operation types as name to code.
func (c *Client) ListCustomTxTypes(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := c.Call(ctx, "listcustomtxtypes", &out)
	return out, err
}

// ListAccountHistory returns history entries for owner ("mine", "all" or
// an address), newest first.
func (c *Client) ListAccountHistory(ctx context.Context, owner string, opts HistoryOptions) ([]history.Entry, error) {
	var out []history.Entry
	err := c.Call(ctx, "listaccounthistory", &out, owner, opts)
	return out, err
}

// ListBurnHistory returns entries crediting the burn address.
func (c *Client) ListBurnHistory(ctx context.Context, opts HistoryOptions) ([]history.Entry, error) {
	var out []history.Entry
	err := c.Call(ctx, "listburnhistory", &out, opts)
	return out, err
}

// AccountHistoryCount counts history entries for owner.
func (c *Client) AccountHistoryCount(ctx context.Context, owner string, opts HistoryOptions) (int, error) {
	var out int
	err := c.Call(ctx, "accounthistorycount", &out, owner, opts)
	return out, err
}

// ImportPrivKey adds a private key (WIF or raw hex) to the node's key store.
func (c *Client) ImportPrivKey(ctx context.Context, key, label string) error {
	return c.Call(ctx, "importprivkey", nil, key, label)
}

// GetNewAddress derives a fresh wallet address of the given type.
func (c *Client) GetNewAddress(ctx context.Context, label, addrType string) (string, error) {
	var out string
	err := c.Call(ctx, "getnewaddress", &out, label, addrType)
	return out, err
}

// Generate mines n blocks paying address ("" for the wallet default).
func (c *Client) Generate(ctx context.Context, n int, address string) ([]string, error) {
	var out []string
	var err error
	if address == "" {
		err = c.Call(ctx, "generate", &out, n)
	} else {
		err = c.Call(ctx, "generate", &out, n, address)
	}
	return out, err
}

// GetBlockCount returns the tip height.
func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.Call(ctx, "getblockcount", &out)
	return out, err
}

// GetAccount returns the account balances of owner as amount strings.
func (c *Client) GetAccount(ctx context.Context, owner string) ([]string, error) {
	var out []string
	err := c.Call(ctx, "getaccount", &out, owner)
	return out, err
}
