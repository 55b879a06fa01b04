// Package txtype is the registry of custom operation types: their one-byte
// wire codes, names and the fork that activates each of them.
package txtype

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownType is returned for a code or name not active at the queried height.
var ErrUnknownType = errors.New("unknown custom transaction type")

// Code is the one-byte marker of a custom operation.
type Code byte

// String returns the code as its one-character string.
func (c Code) String() string {
	return string(rune(c))
}

// Fork names, in activation order.
const (
	ForkGenesis      = "genesis"
	ForkAMK          = "amk"
	ForkBayfront     = "bayfront"
	ForkEunos        = "eunos"
	ForkFortCanning  = "fortcanning"
	ForkGrandCentral = "grandcentral"
	ForkNextUpgrade  = "nextupgrade"
)

// Forks lists every fork name in activation order.
var Forks = []string{ForkGenesis, ForkAMK, ForkBayfront, ForkEunos, ForkFortCanning, ForkGrandCentral, ForkNextUpgrade}

// Custom operation codes used by the ledger itself.
const (
	CreateMasternode      Code = 'C'
	ResignMasternode      Code = 'R'
	CreateToken           Code = 'T'
	UpdateToken           Code = 'N'
	UpdateTokenAny        Code = 'n'
	MintToken             Code = 'M'
	BurnToken             Code = 'F'
	CreatePoolPair        Code = 'p'
	UpdatePoolPair        Code = 'u'
	PoolSwap              Code = 's'
	AddPoolLiquidity      Code = 'l'
	RemovePoolLiquidity   Code = 'r'
	UtxosToAccount        Code = 'U'
	AccountToUtxos        Code = 'b'
	AccountToAccount      Code = 'B'
	AnyAccountsToAccounts Code = 'a'
	SetGovVariable        Code = 'G'
	SetGovVariableHeight  Code = 'j'
	AppointOracle         Code = 'o'
	RemoveOracleAppoint   Code = 'h'
	UpdateOracleAppoint   Code = 't'
	SetOracleData         Code = 'y'
	SetLoanToken          Code = 'g'
	CreateVault           Code = 'V'
	DepositToVault        Code = 'S'
	TakeLoan              Code = 'X'
	PaybackLoan           Code = 'H'
	CreateCfp             Code = 'z'
	Vote                  Code = 'O'
	TransferDomain        Code = '8'
	EvmTx                 Code = '9'
)

// Entry is one registered type.
type Entry struct {
	Code             Code
	Name             string
	Fork             string
	ActivationHeight uint64
}

// definitions is append-only: new types go at the end, existing rows are
// never edited.
var definitions = []struct {
	code Code
	name string
	fork string
}{
	{CreateMasternode, "CreateMasternode", ForkGenesis},
	{ResignMasternode, "ResignMasternode", ForkGenesis},
	{CreateToken, "CreateToken", ForkGenesis},
	{UpdateToken, "UpdateToken", ForkGenesis},
	{MintToken, "MintToken", ForkGenesis},
	{CreatePoolPair, "CreatePoolPair", ForkGenesis},
	{UpdatePoolPair, "UpdatePoolPair", ForkGenesis},
	{PoolSwap, "PoolSwap", ForkGenesis},
	{AddPoolLiquidity, "AddPoolLiquidity", ForkGenesis},
	{RemovePoolLiquidity, "RemovePoolLiquidity", ForkGenesis},
	{UtxosToAccount, "UtxosToAccount", ForkGenesis},
	{AccountToUtxos, "AccountToUtxos", ForkGenesis},
	{AccountToAccount, "AccountToAccount", ForkGenesis},
	{SetGovVariable, "SetGovVariable", ForkGenesis},
	{UpdateTokenAny, "UpdateTokenAny", ForkAMK},
	{AnyAccountsToAccounts, "AnyAccountsToAccounts", ForkAMK},
	{AppointOracle, "AppointOracle", ForkEunos},
	{RemoveOracleAppoint, "RemoveOracleAppoint", ForkEunos},
	{UpdateOracleAppoint, "UpdateOracleAppoint", ForkEunos},
	{SetOracleData, "SetOracleData", ForkEunos},
	{SetGovVariableHeight, "SetGovVariableHeight", ForkFortCanning},
	{SetLoanToken, "SetLoanToken", ForkFortCanning},
	{CreateVault, "CreateVault", ForkFortCanning},
	{DepositToVault, "DepositToVault", ForkFortCanning},
	{TakeLoan, "TakeLoan", ForkFortCanning},
	{PaybackLoan, "PaybackLoan", ForkFortCanning},
	{BurnToken, "BurnToken", ForkGrandCentral},
	{CreateCfp, "CreateCfp", ForkGrandCentral},
	{Vote, "Vote", ForkGrandCentral},
	{TransferDomain, "TransferDomain", ForkNextUpgrade},
	{EvmTx, "EvmTx", ForkNextUpgrade},
}

// Registry resolves codes and names against fork activation heights.
// It is immutable after construction.
type Registry struct {
	entries []Entry
	byCode  map[Code]int
	byName  map[string]int
}

// New builds the registry. forkHeights maps fork name to activation height;
// a fork missing from the map never activates, except genesis.
func New(forkHeights map[string]uint64) (*Registry, error) {
	r := &Registry{
		byCode: make(map[Code]int, len(definitions)),
		byName: make(map[string]int, len(definitions)),
	}
	for _, d := range definitions {
		h, ok := forkHeights[d.fork]
		if !ok && d.fork != ForkGenesis {
			h = NeverActive
		}
		if _, dup := r.byCode[d.code]; dup {
			return nil, fmt.Errorf("duplicate type code %q", d.code)
		}
		if _, dup := r.byName[d.name]; dup {
			return nil, fmt.Errorf("duplicate type name %q", d.name)
		}
		r.byCode[d.code] = len(r.entries)
		r.byName[d.name] = len(r.entries)
		r.entries = append(r.entries, Entry{Code: d.code, Name: d.name, Fork: d.fork, ActivationHeight: h})
	}
	return r, nil
}

// NeverActive is the activation height of a fork that is not scheduled.
const NeverActive = ^uint64(0)

// Resolve maps a type name or its one-character code to the code, provided
// the type is active at height.
func (r *Registry) Resolve(ref string, height uint64) (Code, error) {
	if i, ok := r.byName[ref]; ok && r.entries[i].ActivationHeight <= height {
		return r.entries[i].Code, nil
	}
	if len(ref) == 1 {
		if i, ok := r.byCode[Code(ref[0])]; ok && r.entries[i].ActivationHeight <= height {
			return r.entries[i].Code, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, ref)
}

// Name returns the name of a code, regardless of activation.
func (r *Registry) Name(code Code) (string, error) {
	i, ok := r.byCode[code]
	if !ok {
		return "", fmt.Errorf("%w: code %q", ErrUnknownType, code.String())
	}
	return r.entries[i].Name, nil
}

// All returns name → code for every type active at height.
func (r *Registry) All(height uint64) map[string]string {
	out := make(map[string]string)
	for _, e := range r.entries {
		if e.ActivationHeight <= height {
			out[e.Name] = e.Code.String()
		}
	}
	return out
}

// Entries returns every registered entry sorted by name.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
