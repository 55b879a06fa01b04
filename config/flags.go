package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is the node version string.
const Version = "0.1.0"

// nodeFlag binds a command-line flag to a config file key, so both sources
// share one setter.
type nodeFlag struct {
	name    string
	key     string
	boolean bool
	def     bool // default for boolean flags
	usage   string
}

var nodeFlags = []nodeFlag{
	{name: "db-backend", key: "db.backend", usage: "Storage backend: badger, leveldb or memory"},

	{name: "rpc", key: "rpc.enabled", boolean: true, def: true, usage: "Enable RPC server"},
	{name: "rpc-addr", key: "rpc.addr", usage: "RPC listen address"},
	{name: "rpc-port", key: "rpc.port", usage: "RPC listen port (mainnet 8554, testnet 18554, regtest 19554)"},
	{name: "rpc-allowed", key: "rpc.allowed", usage: "Comma-separated IPs allowed to call RPC"},
	{name: "rpc-cors", key: "rpc.cors", usage: "Comma-separated CORS origins for RPC"},
	{name: "rpc-cache", key: "rpc.cache", usage: "RPC result cache: none or smart"},
	{name: "metrics", key: "rpc.metrics", boolean: true, usage: "Serve Prometheus metrics at /metrics"},

	{name: "wallet", key: "wallet.enabled", boolean: true, def: true, usage: "Enable the integrated HD wallet"},
	{name: "wallet-file", key: "wallet.file", usage: "Wallet file, relative to <datadir>/<network>/wallet"},

	{name: "acindex", key: "index.account", boolean: true, def: true, usage: "Maintain the account history index"},

	{name: "log-level", key: "log.level", usage: "Log level: debug, info, warn or error"},
	{name: "log-file", key: "log.file", usage: "Rotated log file (default <datadir>/logs/ledger.log)"},
	{name: "log-json", key: "log.json", boolean: true, usage: "Write logs as JSON"},
}

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	Network string
	DataDir string
	Config  string

	// Settings lists the explicitly given node flags as config key/value
	// pairs, in the order ApplyFlags applies them.
	Settings [][2]string

	// Forks holds --fork name=height overrides (regtest only).
	Forks []string

	// Args holds the remaining positional arguments.
	Args []string
}

type forkList struct{ f *Flags }

func (l forkList) String() string {
	if l.f == nil {
		return ""
	}
	return strings.Join(l.f.Forks, ",")
}

func (l forkList) Set(v string) error {
	name, height, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(height) == "" {
		return fmt.Errorf("expected name=height, got %q", v)
	}
	l.f.Forks = append(l.f.Forks, v)
	return nil
}

func newFlagSet(f *Flags, out io.Writer) (*flag.FlagSet, map[string]string) {
	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.BoolVar(&f.Help, "help", false, "Show this help message")
	fs.BoolVar(&f.Help, "h", false, "Shorthand for --help")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Shorthand for --version")

	fs.StringVar(&f.Network, "network", "", "Network: mainnet (default), testnet or regtest")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory (default ~/.defiledger)")
	fs.StringVar(&f.Config, "config", "", "Config file (default <datadir>/ledger.conf)")
	fs.StringVar(&f.Config, "c", "", "Shorthand for --config")
	fs.Var(forkList{f}, "fork", "Fork activation override name=height, regtest only (repeatable)")

	keys := make(map[string]string, len(nodeFlags))
	for _, nf := range nodeFlags {
		if nf.boolean {
			fs.Bool(nf.name, nf.def, nf.usage)
		} else {
			fs.String(nf.name, "", nf.usage)
		}
		keys[nf.name] = nf.key
	}

	fs.Usage = func() {
		fmt.Fprint(out, "DefiLedger - dual address space mapping and custom transaction history node\n\n")
		fmt.Fprint(out, "Usage:\n  ledgerd [options]\n\n")
		fmt.Fprint(out, "Options (--testnet and --regtest select a network):\n")
		fs.PrintDefaults()
		fmt.Fprint(out, "\nExample:\n  ledgerd --regtest --fork grandcentral=101\n")
	}
	return fs, keys
}

// ParseFlags parses os.Args, exiting on error or --help parse requests.
func ParseFlags() *Flags {
	f, err := ParseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ParseArgs parses args into Flags. Usage and errors go to out.
func ParseArgs(args []string, out io.Writer) (*Flags, error) {
	f := &Flags{}
	fs, keys := newFlagSet(f, out)
	testnet := fs.Bool("testnet", false, "Shorthand for --network=testnet")
	regtest := fs.Bool("regtest", false, "Shorthand for --network=regtest")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch {
	case *regtest:
		f.Network = string(Regtest)
	case *testnet:
		f.Network = string(Testnet)
	}

	fs.Visit(func(fl *flag.Flag) {
		if key, ok := keys[fl.Name]; ok {
			f.Settings = append(f.Settings, [2]string{key, fl.Value.String()})
		}
	})

	f.Args = fs.Args()
	// A positional argument stops the parser; anything flag-like after it
	// would otherwise be silently ignored.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}
	return f, nil
}

// ApplyFlags applies command-line flags on top of cfg.
func ApplyFlags(cfg *Config, f *Flags) error {
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	for _, kv := range f.Settings {
		if err := setConfigValue(cfg, kv[0], kv[1]); err != nil {
			return fmt.Errorf("flag for %s: %w", kv[0], err)
		}
	}
	for _, kv := range f.Forks {
		name, height, _ := strings.Cut(kv, "=")
		if err := setConfigValue(cfg, "fork."+strings.TrimSpace(name), strings.TrimSpace(height)); err != nil {
			return fmt.Errorf("--fork %s: %w", kv, err)
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fs, _ := newFlagSet(&Flags{}, w)
	fs.Usage()
}

// Load builds the node configuration from os.Args. Later sources win:
// network defaults, then the config file (written on first start), then
// flags.
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()
	if flags.Help {
		printUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("ledgerd version " + Version)
		os.Exit(0)
	}

	cfg, err := LoadWith(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// LoadWith builds the configuration from already-parsed flags.
func LoadWith(flags *Flags) (*Config, error) {
	network := NetworkType(strings.ToLower(flags.Network))
	if network != Testnet && network != Regtest {
		network = Mainnet
	}
	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	path := flags.Config
	if path == "" {
		path = cfg.ConfigFile()
	}
	values, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, values); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	if err := ApplyFlags(cfg, flags); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory tree and, on first start, a
// default config file. It is safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.ChainDataDir(), cfg.DBDir(), cfg.WalletDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	path := cfg.ConfigFile()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefaultConfig(path, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
