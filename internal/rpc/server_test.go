package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/chain"
	"github.com/Klingon-tech/defiledger/internal/history"
	"github.com/Klingon-tech/defiledger/internal/keystore"
	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/metrics"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/internal/txtype"
	"github.com/Klingon-tech/defiledger/internal/wallet"
)

// testEnv holds all components for an RPC test.
type testEnv struct {
	server  *Server
	chain   *chain.Chain
	keys    *keystore.Store
	metrics *metrics.Metrics
	url     string
}

type envOptions struct {
	noIndex  bool
	noWallet bool
	rpc      config.RPCConfig
}

func setupTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	klog.Init(klog.Options{Level: "error"})

	m := metrics.New()
	db := storage.NewMemory()
	params := config.RegtestParams()
	reg, err := txtype.New(params.ForkHeights)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	var idx *history.Indexer
	if !opts.noIndex {
		idx, err = history.NewIndexer(storage.NewPrefixDB(db, []byte("h/")), reg, m)
		if err != nil {
			t.Fatalf("indexer: %v", err)
		}
	}
	ch, err := chain.New(db, params, reg, idx)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	keys := keystore.New(ch.Codec(), storage.NewPrefixDB(db, []byte("k/")), m)

	srv := New("127.0.0.1:0", ch, keys, opts.rpc, m)
	if !opts.noWallet {
		w, _, err := wallet.Open(filepath.Join(t.TempDir(), "wallet.dat"), []byte("test"),
			wallet.KDFParams{Memory: 64, Iterations: 1, Parallelism: 1})
		if err != nil {
			t.Fatalf("wallet: %v", err)
		}
		srv.SetWallet(w)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop(context.Background()) })

	return &testEnv{
		server:  srv,
		chain:   ch,
		keys:    keys,
		metrics: m,
		url:     fmt.Sprintf("http://%s/", srv.Addr()),
	}
}

func rpcCall(t *testing.T, url, method string, params ...interface{}) Response {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if len(params) > 0 {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

// call invokes method and decodes the result into out (if non-nil).
func (e *testEnv) call(t *testing.T, out interface{}, method string, params ...interface{}) {
	t.Helper()
	resp := rpcCall(t, e.url, method, params...)
	if resp.Error != nil {
		t.Fatalf("%s: error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}
	if out == nil {
		return
	}
	data, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("%s: decode result %s: %v", method, data, err)
	}
}

// callErr invokes method and returns its error, failing if there is none.
func (e *testEnv) callErr(t *testing.T, method string, params ...interface{}) *Error {
	t.Helper()
	resp := rpcCall(t, e.url, method, params...)
	if resp.Error == nil {
		t.Fatalf("%s(%v): expected error, got %v", method, params, resp.Result)
	}
	return resp.Error
}

func expectError(t *testing.T, err *Error, code int, msg string) {
	t.Helper()
	if err.Code != code || !strings.Contains(err.Message, msg) {
		t.Errorf("error = %d %q, want %d containing %q", err.Code, err.Message, code, msg)
	}
}

// ── Address mapping ─────────────────────────────────────────────────────

var mapVectors = []struct {
	wif, raw, primary, secondary string
}{
	{
		"cNoUVyyacpVBpotBGxrnM5XXekdqV8qgnowVQfgCvDWVU9jn4gUz",
		"2468918553ca24474efea1e6a3641a1302bd643d15c13a6dbe89b8da38c90b3c",
		"bcrt1qmhpq9hxgdglwja6uruc92yne8ekxljgykrfta5",
		"0xfD0766e7aBe123A25c73c95f6dc3eDe26D0b7263",
	},
	{
		"cPaTadxsWhzHNgi2hAiFXXnw7foEGXBME75s27CEGFeS8S3pYf8j",
		"3b8ccde96d9c78c6cf248ffcb9ed89ba8327b8c994600ca391b38f5deffa15ca",
		"bcrt1qtqggfdte5jp8duffzmt54aqtqwlv3l8xsjdrhf",
		"0x4d07A76Db2a281a348d5A5a1833F4322D77799d5",
	},
	{
		"cSu1eq6MKxZ2exooiXEwC7jA4W7Gd3YyfDL8BWQCm8abaDKrnDkr",
		"9e9b4756952999af30a62ebe4f8bcd12ed251d820e5d3c8cee550685693f2688",
		"bcrt1qdw7fqrq9n2d530uh05vdm2yvpag2ydm0z67yc5",
		"0x816a4DDbC26B80602767B13Fb17B2e1785125BE7",
	},
}

func TestRPC_AddressMap(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	for i, v := range mapVectors {
		// Alternate the import encoding, and import the second form too:
		// both must land on the same key.
		first, second := v.raw, v.wif
		if i%2 == 1 {
			first, second = second, first
		}
		env.call(t, nil, "importprivkey", first)
		env.call(t, nil, "importprivkey", second)
	}
	if env.keys.Len() != len(mapVectors) {
		t.Fatalf("keys held = %d, want %d", env.keys.Len(), len(mapVectors))
	}

	for _, v := range mapVectors {
		var got string
		env.call(t, &got, "addressmap", v.primary, 1)
		if got != v.secondary {
			t.Errorf("addressmap(%s, 1) = %s, want %s", v.primary, got, v.secondary)
		}
		env.call(t, &got, "addressmap", v.secondary, 2)
		if got != v.primary {
			t.Errorf("addressmap(%s, 2) = %s, want %s", v.secondary, got, v.primary)
		}
		env.call(t, &got, "addressmap", v.secondary, 0)
		if got != v.primary {
			t.Errorf("addressmap(%s, 0) = %s, want %s", v.secondary, got, v.primary)
		}
	}
}

func TestRPC_AddressMapSameKeyForms(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	var legacy, bech32, eth string
	env.call(t, &legacy, "getnewaddress", "", "legacy")
	env.call(t, &eth, "addressmap", legacy, 1)
	env.call(t, &bech32, "addressmap", eth, 2)

	var fromBech32 string
	env.call(t, &fromBech32, "addressmap", bech32, 0)
	if fromBech32 != eth {
		t.Errorf("legacy and bech32 forms map differently: %s vs %s", eth, fromBech32)
	}
	if !strings.HasPrefix(bech32, "bcrt1q") {
		t.Errorf("round trip did not return the bech32 form: %s", bech32)
	}
}

func TestRPC_AddressMapErrors(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	var legacy, p2sh, eth string
	env.call(t, &legacy, "getnewaddress", "", "legacy")
	env.call(t, &p2sh, "getnewaddress", "", "p2sh-segwit")
	env.call(t, &eth, "getnewaddress", "", "eth")

	notHeld := mapVectors[1].secondary
	zero := "0x0000000000000000000000000000000000000000"

	tests := []struct {
		name string
		addr string
		dir  interface{}
		code int
		msg  string
	}{
		{"type 9", legacy, 9, CodeInvalidParameter, "Invalid type parameter"},
		{"type 1e20", legacy, json.Number("1e20"), CodeInvalidParameter, "Invalid type parameter"},
		{"type 1.5", legacy, 1.5, CodeInvalidParameter, "Invalid type parameter"},
		{"type as text", legacy, "one", CodeInvalidParams, ""},
		{"type -1", legacy, -1, CodeInvalidParameter, "Invalid type parameter"},
		{"eth as primary", eth, 1, CodeInvalidParameter, "Invalid type parameter"},
		{"legacy as secondary", legacy, 2, CodeInvalidParameter, "Invalid type parameter"},
		{"p2sh", p2sh, 1, CodeInvalidParameter, "Invalid type parameter"},
		{"p2sh auto", p2sh, 0, CodeInvalidParameter, "Invalid type parameter"},
		{"key not held", notHeld, 2, CodeInvalidAddressOrKey, "no full public key for address " + notHeld},
		{"zero account", zero, 2, CodeInvalidAddressOrKey, zero + " does not refer to a key"},
		{"zero account as primary", zero, 1, CodeInvalidParameter, "Invalid type parameter"},
		{"garbage to secondary", "test", 1, CodeInvalidParameter, "Invalid type parameter"},
		{"garbage to primary", "test", 2, CodeInvalidParameter, "Invalid type parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.callErr(t, "addressmap", tt.addr, tt.dir), tt.code, tt.msg)
		})
	}
}

func TestRPC_ValidateAddress(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	var addr string
	env.call(t, &addr, "getnewaddress", "savings", "p2sh-segwit")

	var res ValidateAddressResult
	env.call(t, &res, "validateaddress", addr)
	if !res.IsValid || !res.IsMine || res.Convertible || res.Label != "savings" {
		t.Errorf("validateaddress(p2sh) = %+v", res)
	}

	env.call(t, &res, "validateaddress", mapVectors[0].secondary)
	if !res.IsValid || res.IsMine || !res.Convertible {
		t.Errorf("validateaddress(eth) = %+v", res)
	}

	res = ValidateAddressResult{}
	env.call(t, &res, "validateaddress", "nonsense")
	if res.IsValid {
		t.Error("nonsense address reported valid")
	}
}

func TestRPC_ImportPrivKeyInvalid(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	expectError(t, env.callErr(t, "importprivkey", "not-a-key"), CodeInvalidAddressOrKey, "Invalid private key encoding")
	// A well-formed key for another network says so instead of blaming the encoding.
	expectError(t, env.callErr(t, "importprivkey", "KxSV34yjBknvfNQutZ3eym2U2XLRpgjzimo2JFDhR6rVDQkSKeEt"),
		CodeInvalidAddressOrKey, "different network")
}

func TestRPC_GetNewAddressWithoutWallet(t *testing.T) {
	env := setupTestEnv(t, envOptions{noWallet: true})
	expectError(t, env.callErr(t, "getnewaddress"), CodeMisc, "wallet is disabled")
	expectError(t, env.callErr(t, "generate", 1), CodeInvalidParameter, "address is required")
}

// ── Custom operation history ────────────────────────────────────────────

// createGold runs the token scenario: 101 blocks, GOLD created with a
// fresh legacy collateral address, then 300 GOLD minted.
func createGold(t *testing.T, env *testEnv) (collateral, id string) {
	t.Helper()
	env.call(t, nil, "generate", 101)
	env.call(t, &collateral, "getnewaddress", "", "legacy")
	env.call(t, nil, "createtoken", map[string]interface{}{
		"symbol":            "GOLD",
		"name":              "gold",
		"collateralAddress": collateral,
	})
	env.call(t, nil, "generate", 1)

	var tokens map[string]struct {
		Symbol string `json:"symbol"`
	}
	env.call(t, &tokens, "listtokens")
	for k, v := range tokens {
		if v.Symbol == "GOLD" {
			id = k
		}
	}
	if id == "" {
		t.Fatalf("GOLD missing from listtokens: %v", tokens)
	}
	env.call(t, nil, "minttokens", []string{"300@" + id})
	env.call(t, nil, "generate", 1)
	return collateral, id
}

func TestRPC_ListCustomTxTypesScenario(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	collateral, _ := createGold(t, env)

	var codes map[string]string
	env.call(t, &codes, "listcustomtxtypes")
	if codes["CreateToken"] != "T" || codes["MintToken"] != "M" {
		t.Fatalf("listcustomtxtypes = %v", codes)
	}

	var minted []history.Entry
	env.call(t, &minted, "listaccounthistory", "mine", map[string]string{"txtype": codes["MintToken"]})
	if len(minted) != 1 || minted[0].Type != "MintToken" {
		t.Fatalf("MintToken history = %+v", minted)
	}
	if minted[0].Owner != collateral || minted[0].Amounts[0] != "300.00000000@GOLD" {
		t.Errorf("mint entry = %+v", minted[0])
	}

	var burns []history.Entry
	env.call(t, &burns, "listburnhistory", map[string]string{"txtype": codes["CreateToken"]})
	if len(burns) != 1 || burns[0].Type != "CreateToken" {
		t.Fatalf("CreateToken burns = %+v", burns)
	}

	var mintCount, allCount int
	env.call(t, &mintCount, "accounthistorycount", "mine", map[string]string{"txtype": codes["MintToken"]})
	env.call(t, &allCount, "accounthistorycount")
	if mintCount != 1 || mintCount >= allCount {
		t.Errorf("count(mint) = %d, count(all) = %d", mintCount, allCount)
	}

	// Every code filters to entries of its own name.
	for name, code := range codes {
		var entries []history.Entry
		env.call(t, &entries, "listaccounthistory", "all", map[string]interface{}{"txtype": code, "limit": 0})
		for _, e := range entries {
			if e.Type != name {
				t.Errorf("filter %s returned %s entry", code, e.Type)
			}
		}
		var n int
		env.call(t, &n, "accounthistorycount", "all", map[string]string{"txtype": code})
		if n != len(entries) {
			t.Errorf("count(%s) = %d, list = %d", name, n, len(entries))
		}
	}

	var account []string
	env.call(t, &account, "getaccount", collateral)
	if len(account) != 1 || account[0] != "300.00000000@GOLD" {
		t.Errorf("getaccount = %v", account)
	}

	var n int
	env.call(t, &n, "accounthistorycount", mapVectors[2].primary)
	if n != 0 {
		t.Errorf("count for an unused owner = %d", n)
	}
}

func TestRPC_TransfersAndBurns(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	collateral, _ := createGold(t, env)

	var spare string
	env.call(t, &spare, "getnewaddress")
	env.call(t, nil, "utxostoaccount", map[string]string{spare: "5@DFI"})
	env.call(t, nil, "accounttoaccount", collateral, map[string][]string{spare: {"100@GOLD"}})
	env.call(t, nil, "generate", 1)
	env.call(t, nil, "burntokens", map[string]interface{}{"amounts": "40@GOLD", "from": spare})
	env.call(t, nil, "generate", 1)

	var account []string
	env.call(t, &account, "getaccount", spare)
	want := []string{"5.00000000@DFI", "60.00000000@GOLD"}
	if fmt.Sprint(account) != fmt.Sprint(want) {
		t.Errorf("getaccount = %v, want %v", account, want)
	}

	var burns []history.Entry
	env.call(t, &burns, "listburnhistory", map[string]string{"txtype": "BurnToken"})
	if len(burns) != 1 || burns[0].Amounts[0] != "40.00000000@GOLD" {
		t.Errorf("BurnToken burns = %+v", burns)
	}
	var hist []history.Entry
	env.call(t, &hist, "listaccounthistory", spare, map[string]string{"token": "GOLD"})
	if len(hist) != 2 || hist[0].Type != "BurnToken" || hist[1].Type != "AccountToAccount" {
		t.Errorf("GOLD history = %+v", hist)
	}

	var limited []history.Entry
	env.call(t, &limited, "listaccounthistory", "all", map[string]int{"limit": 1, "start": 1})
	if len(limited) != 1 {
		t.Errorf("paged history = %d entries", len(limited))
	}
}

func TestRPC_GetBalance(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	var bal float64
	env.call(t, &bal, "getbalance")
	if bal != 0 {
		t.Fatalf("fresh balance = %v", bal)
	}

	// Regtest pays 50 coins per block to a wallet address.
	env.call(t, nil, "generate", 3)
	env.call(t, &bal, "getbalance")
	if bal != 150 {
		t.Fatalf("balance after 3 blocks = %v, want 150", bal)
	}

	var spare string
	env.call(t, &spare, "getnewaddress")
	env.call(t, nil, "utxostoaccount", map[string]string{spare: "5@DFI"})
	env.call(t, nil, "generate", 1)
	env.call(t, &bal, "getbalance")
	if bal != 195 {
		t.Errorf("balance after moving 5 to an account = %v, want 195", bal)
	}

	expectError(t, env.callErr(t, "getbalance", "extra"), CodeInvalidParams, "")
}

func TestRPC_OperationErrors(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	collateral, _ := createGold(t, env)

	expectError(t, env.callErr(t, "burntokens", map[string]string{"amounts": "1@GOLD", "from": mapVectors[0].primary}),
		CodeInvalidAddressOrKey, "Incorrect authorization")
	expectError(t, env.callErr(t, "accounttoaccount", collateral, map[string]string{mapVectors[0].primary: "1000@GOLD"}),
		CodeVerifyRejected, "insufficient")
	expectError(t, env.callErr(t, "minttokens", "1@SILVER"), CodeInvalidAddressOrKey, "")
	expectError(t, env.callErr(t, "createtoken", map[string]string{"symbol": "GOLD", "collateralAddress": collateral}),
		CodeVerifyRejected, "")
	expectError(t, env.callErr(t, "utxostoaccount", map[string]string{collateral: "100000000@DFI"}),
		CodeWalletInsufficientFunds, "Insufficient funds")
}

func TestRPC_HistoryErrors(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	expectError(t, env.callErr(t, "listaccounthistory", "mine", map[string]string{"txtype": "Nope"}),
		CodeInvalidParameter, "unknown custom transaction type")
	expectError(t, env.callErr(t, "listburnhistory", map[string]string{"txtype": "?"}),
		CodeInvalidParameter, "unknown custom transaction type")
	expectError(t, env.callErr(t, "accounthistorycount", "not-an-address"), CodeInvalidAddressOrKey, "invalid owner")

	off := setupTestEnv(t, envOptions{noIndex: true})
	expectError(t, off.callErr(t, "listaccounthistory"), CodeMisc, "index is disabled")
	var info IndexInfoResult
	off.call(t, &info, "getindexinfo")
	if info.Enabled {
		t.Error("getindexinfo reports an index that is disabled")
	}
}

// ── Chain ───────────────────────────────────────────────────────────────

func TestRPC_InvalidateBlock(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	env.call(t, nil, "generate", 101)

	var before IndexInfoResult
	env.call(t, &before, "getindexinfo")
	if !before.Synced || before.Height != 101 {
		t.Fatalf("getindexinfo = %+v", before)
	}

	var collateral string
	env.call(t, &collateral, "getnewaddress", "", "legacy")
	env.call(t, nil, "createtoken", map[string]string{"symbol": "GOLD", "collateralAddress": collateral})
	var hashes []string
	env.call(t, &hashes, "generate", 1)

	var block BlockResult
	env.call(t, &block, "getblock", hashes[0])
	if block.Height != 102 || len(block.Tx) != 2 {
		t.Fatalf("getblock = %+v", block)
	}

	env.call(t, nil, "invalidateblock", hashes[0])

	var height uint64
	env.call(t, &height, "getblockcount")
	if height != 101 {
		t.Fatalf("getblockcount = %d, want 101", height)
	}
	var after IndexInfoResult
	env.call(t, &after, "getindexinfo")
	if after.Digest != before.Digest || after.Hash != before.Hash {
		t.Errorf("index after invalidateblock = %+v, want %+v", after, before)
	}
	var tokens map[string]json.RawMessage
	env.call(t, &tokens, "listtokens")
	if len(tokens) != 1 {
		t.Errorf("listtokens after invalidateblock = %d tokens", len(tokens))
	}

	expectError(t, env.callErr(t, "getblockhash", 500), CodeInvalidParameter, "out of range")
	expectError(t, env.callErr(t, "getblock", "zz"), CodeInvalidParameter, "32-byte hex")
}

func TestRPC_SmartCache(t *testing.T) {
	env := setupTestEnv(t, envOptions{rpc: config.RPCConfig{Cache: config.CacheSmart}})
	env.call(t, nil, "generate", 2)

	var n int
	env.call(t, &n, "accounthistorycount")
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if env.server.cache.count() != 1 {
		t.Errorf("cache entries = %d, want 1", env.server.cache.count())
	}

	env.call(t, nil, "generate", 1)
	env.call(t, &n, "accounthistorycount")
	if n != 3 {
		t.Errorf("count after new block = %d, want 3 (stale cache?)", n)
	}
}

// ── Transport ───────────────────────────────────────────────────────────

func TestRPC_SmartCacheSeesNewAddressForms(t *testing.T) {
	env := setupTestEnv(t, envOptions{rpc: config.RPCConfig{Cache: config.CacheSmart}})
	const uncompWIF = "91rxAjpFsFqXYgAnNk1rhM4HuxeoL4b97JS2uVFKZSwiLrD7THY"
	const uncompLegacy = "n32jT7A5sv6t9Hm2NAYK6juuwsCdsWe1SF"

	env.call(t, nil, "generate", 2, uncompLegacy)
	env.call(t, nil, "importprivkey", mapVectors[0].raw)

	var count int
	env.call(t, &count, "accounthistorycount", "mine")
	if count != 0 {
		t.Fatalf("count before uncompressed import = %d, want 0", count)
	}

	// Same key, same key count, but one more owned address.
	keys := env.keys.Len()
	env.call(t, nil, "importprivkey", uncompWIF)
	if env.keys.Len() != keys {
		t.Fatalf("uncompressed import added a key: %d -> %d", keys, env.keys.Len())
	}

	var list []history.Entry
	env.call(t, &count, "accounthistorycount", "mine")
	env.call(t, &list, "listaccounthistory", "mine")
	if count != 2 || len(list) != 2 {
		t.Errorf("count = %d, listed = %d, want 2 and 2", count, len(list))
	}
}

func TestRPC_Protocol(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	expectError(t, env.callErr(t, "nosuchmethod"), CodeMethodNotFound, "not found")
	expectError(t, env.callErr(t, "getblockcount", 1), CodeInvalidParams, "expected")

	post := func(body string) Response {
		resp, err := http.Post(env.url, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		var r Response
		json.NewDecoder(resp.Body).Decode(&r)
		return r
	}
	if r := post("{not json"); r.Error == nil || r.Error.Code != CodeParseError {
		t.Errorf("bad JSON = %+v", r.Error)
	}
	if r := post(`{"jsonrpc":"1.0","method":"getblockcount","id":1}`); r.Error == nil || r.Error.Code != CodeInvalidRequest {
		t.Errorf("wrong version = %+v", r.Error)
	}
	if r := post(`{"jsonrpc":"2.0","method":"getblockcount","params":{"a":1},"id":1}`); r.Error == nil || r.Error.Code != CodeInvalidParams {
		t.Errorf("object params = %+v", r.Error)
	}

	resp, err := http.Get(env.url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var r Response
	json.NewDecoder(resp.Body).Decode(&r)
	if r.Error == nil || r.Error.Code != CodeInvalidRequest {
		t.Errorf("GET = %+v", r.Error)
	}
}

func TestRPC_IPFilter(t *testing.T) {
	env := setupTestEnv(t, envOptions{rpc: config.RPCConfig{AllowedIPs: []string{"10.1.2.3"}}})
	resp, err := http.Post(env.url, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestRPC_Metrics(t *testing.T) {
	env := setupTestEnv(t, envOptions{rpc: config.RPCConfig{Metrics: true}})
	env.call(t, nil, "getblockcount")

	resp, err := http.Get(env.url + "metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `ledger_rpc_requests_total{method="getblockcount",outcome="ok"} 1`) {
		t.Errorf("metrics output missing rpc counter:\n%s", body)
	}
}
