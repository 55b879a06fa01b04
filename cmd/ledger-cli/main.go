// ledger-cli is a command-line client for interacting with a ledgerd node.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/history"
	"github.com/Klingon-tech/defiledger/internal/rpcclient"
	"golang.org/x/term"
)

// globals are the flags accepted before the subcommand.
type globals struct {
	rpcURL  string
	network string
	timeout time.Duration
}

func main() {
	g, args, err := parseGlobals(os.Args[1:])
	if err != nil {
		fatal("%v", err)
	}
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.NewWithTimeout(g.rpcURL, g.timeout)
	ctx := context.Background()
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(ctx, client)
	case "addressmap":
		cmdAddressMap(ctx, client, cmdArgs)
	case "validateaddress":
		cmdRaw(ctx, client, "validateaddress", cmdArgs)
	case "importprivkey":
		cmdImportPrivKey(ctx, client, cmdArgs)
	case "getnewaddress":
		cmdGetNewAddress(ctx, client, cmdArgs)
	case "generate":
		cmdGenerate(ctx, client, cmdArgs)
	case "types":
		cmdTypes(ctx, client)
	case "history":
		cmdHistory(ctx, client, cmdArgs, false)
	case "burns":
		cmdHistory(ctx, client, cmdArgs, true)
	case "account":
		cmdAccount(ctx, client, cmdArgs)
	case "call":
		if len(cmdArgs) < 1 {
			fatal("Usage: ledger-cli call <method> [params...]")
		}
		cmdRaw(ctx, client, cmdArgs[0], cmdArgs[1:])
	case "help", "--help", "-h":
		usage()
	default:
		fatal("Unknown command: %s (see ledger-cli help)", cmd)
	}
}

// parseGlobals scans --rpc, --network and --timeout before the subcommand.
// Without --rpc the endpoint follows the network's default port.
func parseGlobals(args []string) (globals, []string, error) {
	g := globals{network: string(config.Mainnet), timeout: 30 * time.Second}
	for len(args) > 0 {
		if !strings.HasPrefix(args[0], "--") {
			break
		}
		name, value, hasValue := strings.Cut(args[0][2:], "=")
		switch name {
		case "rpc", "network", "timeout":
		case "regtest", "testnet":
			g.network = name
			args = args[1:]
			continue
		default:
			return g, nil, fmt.Errorf("unknown global flag %s", args[0])
		}
		if !hasValue {
			if len(args) < 2 {
				return g, nil, fmt.Errorf("flag --%s needs a value", name)
			}
			value = args[1]
			args = args[1:]
		}
		args = args[1:]

		switch name {
		case "rpc":
			g.rpcURL = value
		case "network":
			g.network = value
		case "timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return g, nil, fmt.Errorf("--timeout: %w", err)
			}
			g.timeout = d
		}
	}

	if g.rpcURL == "" {
		cfg := config.Default(config.NetworkType(g.network))
		g.rpcURL = "http://" + cfg.RPCListenAddr() + "/"
	}
	return g, args, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: ledger-cli [global flags] <command> [args]

Global flags:
  --rpc <url>         RPC endpoint (default: the network's local port)
  --network <net>     mainnet (default), testnet or regtest
  --regtest           Shorthand for --network regtest
  --timeout <dur>     Request timeout (default: 30s)

Commands:
  status                          Show tip and history index state
  addressmap <addr> <0|1|2>       Map an address to the other address space
                                  (0 auto, 1 to Ethereum form, 2 to bech32)
  validateaddress <addr>          Describe an address
  importprivkey [--label <l>] [key]
                                  Import a key (prompted when omitted)
  getnewaddress [--label <l>] [--type legacy|p2sh-segwit|bech32|eth]
                                  Derive a new wallet address
  generate <n> [address]          Mine n blocks (regtest)
  types                           List active custom transaction types
  history [--owner mine|all|<addr>] [filters] [--count]
                                  Show account history
  burns [filters]                 Show burn history
  account <addr>                  Show account balances
  call <method> [params...]       Call any method; params are JSON or strings

History filters:
  --txtype <name|code>  --token <SYM>  --max-height <h>  --depth <n>
  --start <n>  --limit <n>
`)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(ctx context.Context, client *rpcclient.Client) {
	height, err := client.GetBlockCount(ctx)
	if err != nil {
		fatal("getblockcount: %v", err)
	}
	var info struct {
		Enabled bool   `json:"enabled"`
		Height  uint64 `json:"height"`
		Digest  string `json:"digest"`
		Synced  bool   `json:"synced"`
	}
	if err := client.Call(ctx, "getindexinfo", &info); err != nil {
		fatal("getindexinfo: %v", err)
	}

	fmt.Printf("Height:  %d\n", height)
	if !info.Enabled {
		fmt.Println("Index:   disabled")
		return
	}
	fmt.Printf("Index:   height %d, synced %v\n", info.Height, info.Synced)
	fmt.Printf("Digest:  %s\n", info.Digest)
}

// ── keys ────────────────────────────────────────────────────────────────

func cmdAddressMap(ctx context.Context, client *rpcclient.Client, args []string) {
	if len(args) != 2 {
		fatal("Usage: ledger-cli addressmap <address> <0|1|2>")
	}
	dir, err := strconv.Atoi(args[1])
	if err != nil {
		fatal("type must be a number: %v", err)
	}
	out, err := client.AddressMap(ctx, args[0], dir)
	if err != nil {
		fatal("addressmap: %v", err)
	}
	fmt.Println(out)
}

func cmdImportPrivKey(ctx context.Context, client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("importprivkey", flag.ExitOnError)
	label := fs.String("label", "", "Key label")
	fs.Parse(args)

	key := fs.Arg(0)
	if key == "" {
		b, err := readSecret("Private key (WIF or hex): ")
		if err != nil {
			fatal("read key: %v", err)
		}
		key = strings.TrimSpace(string(b))
	}
	if err := client.ImportPrivKey(ctx, key, *label); err != nil {
		fatal("importprivkey: %v", err)
	}
	fmt.Println("Key imported.")
}

func cmdGetNewAddress(ctx context.Context, client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("getnewaddress", flag.ExitOnError)
	label := fs.String("label", "", "Address label")
	kind := fs.String("type", "bech32", "Address type")
	fs.Parse(args)

	addr, err := client.GetNewAddress(ctx, *label, *kind)
	if err != nil {
		fatal("getnewaddress: %v", err)
	}
	fmt.Println(addr)
}

// ── chain ───────────────────────────────────────────────────────────────

func cmdGenerate(ctx context.Context, client *rpcclient.Client, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fatal("Usage: ledger-cli generate <n> [address]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fatal("n must be a number: %v", err)
	}
	addr := ""
	if len(args) == 2 {
		addr = args[1]
	}
	hashes, err := client.Generate(ctx, n, addr)
	if err != nil {
		fatal("generate: %v", err)
	}
	for _, h := range hashes {
		fmt.Println(h)
	}
}

func cmdAccount(ctx context.Context, client *rpcclient.Client, args []string) {
	if len(args) != 1 {
		fatal("Usage: ledger-cli account <address>")
	}
	amounts, err := client.GetAccount(ctx, args[0])
	if err != nil {
		fatal("getaccount: %v", err)
	}
	if len(amounts) == 0 {
		fmt.Println("No balances.")
		return
	}
	for _, a := range amounts {
		fmt.Println(a)
	}
}

// ── history ─────────────────────────────────────────────────────────────

func cmdTypes(ctx context.Context, client *rpcclient.Client) {
	types, err := client.ListCustomTxTypes(ctx)
	if err != nil {
		fatal("listcustomtxtypes: %v", err)
	}
	printJSON(types)
}

func cmdHistory(ctx context.Context, client *rpcclient.Client, args []string, burns bool) {
	name := "history"
	if burns {
		name = "burns"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	owner := fs.String("owner", "mine", "mine, all or an address")
	count := fs.Bool("count", false, "Print the number of matching entries")
	opts := historyFlags(fs)
	fs.Parse(args)

	var (
		entries []history.Entry
		err     error
	)
	switch {
	case burns:
		entries, err = client.ListBurnHistory(ctx, opts.build())
	case *count:
		n, err := client.AccountHistoryCount(ctx, *owner, opts.build())
		if err != nil {
			fatal("accounthistorycount: %v", err)
		}
		fmt.Println(n)
		return
	default:
		entries, err = client.ListAccountHistory(ctx, *owner, opts.build())
	}
	if err != nil {
		fatal("%s: %v", name, err)
	}
	printJSON(entries)
}

// historyOpts binds the history filter flags.
type historyOpts struct {
	txtype, token    *string
	maxHeight, depth *int64
	start, limit     *int
}

func historyFlags(fs *flag.FlagSet) *historyOpts {
	return &historyOpts{
		txtype:    fs.String("txtype", "", "Operation type name or code"),
		token:     fs.String("token", "", "Token symbol"),
		maxHeight: fs.Int64("max-height", -1, "Newest block height to include"),
		depth:     fs.Int64("depth", -1, "Blocks below max-height to include"),
		start:     fs.Int("start", -1, "Entries to skip"),
		limit:     fs.Int("limit", -1, "Entries to return (0 = all)"),
	}
}

// build turns the flags into options, leaving unset ones to the node.
func (o *historyOpts) build() rpcclient.HistoryOptions {
	out := rpcclient.HistoryOptions{TxType: *o.txtype, Token: *o.token}
	if *o.maxHeight >= 0 {
		h := uint64(*o.maxHeight)
		out.MaxBlockHeight = &h
	}
	if *o.depth >= 0 {
		d := uint64(*o.depth)
		out.Depth = &d
	}
	if *o.start >= 0 {
		out.Start = o.start
	}
	if *o.limit >= 0 {
		out.Limit = o.limit
	}
	return out
}

// ── raw calls ───────────────────────────────────────────────────────────

func cmdRaw(ctx context.Context, client *rpcclient.Client, method string, args []string) {
	var result json.RawMessage
	if err := client.Call(ctx, method, &result, parseParams(args)...); err != nil {
		fatal("%s: %v", method, err)
	}
	printJSON(result)
}

// parseParams treats each argument as JSON when it parses, and as a plain
// string otherwise, so addresses need no quoting.
func parseParams(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if json.Valid([]byte(a)) {
			out[i] = json.RawMessage(a)
			continue
		}
		out[i] = a
	}
	return out
}

// ── Output helpers ──────────────────────────────────────────────────────

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode output: %v", err)
	}
	fmt.Println(string(data))
}

func readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return secret, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
