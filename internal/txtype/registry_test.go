package txtype

import (
	"errors"
	"testing"
)

func testForks() map[string]uint64 {
	return map[string]uint64{
		ForkAMK:          50,
		ForkBayfront:     50,
		ForkEunos:        100,
		ForkFortCanning:  150,
		ForkGrandCentral: 200,
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(testForks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolve_NameAndCode(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Resolve("MintToken", 0)
	if err != nil {
		t.Fatalf("Resolve(MintToken): %v", err)
	}
	if c != MintToken {
		t.Errorf("Resolve(MintToken) = %s, want M", c)
	}
	c, err = r.Resolve("M", 0)
	if err != nil || c != MintToken {
		t.Errorf("Resolve(M) = %s, %v", c, err)
	}
}

func TestResolve_Activation(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Resolve("AnyAccountsToAccounts", 49); !errors.Is(err, ErrUnknownType) {
		t.Errorf("AnyAccountsToAccounts before amk error = %v, want ErrUnknownType", err)
	}
	if _, err := r.Resolve("a", 50); err != nil {
		t.Errorf("AnyAccountsToAccounts at amk: %v", err)
	}
	// nextupgrade is not scheduled.
	if _, err := r.Resolve("EvmTx", 1_000_000); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unscheduled fork type error = %v", err)
	}
}

func TestResolve_Unknown(t *testing.T) {
	r := newTestRegistry(t)
	for _, ref := range []string{"", "Nope", "?", "MM"} {
		if _, err := r.Resolve(ref, 1000); !errors.Is(err, ErrUnknownType) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnknownType", ref, err)
		}
	}
}

func TestName(t *testing.T) {
	r := newTestRegistry(t)
	n, err := r.Name(CreateToken)
	if err != nil || n != "CreateToken" {
		t.Errorf("Name(T) = %s, %v", n, err)
	}
	if _, err := r.Name(Code('~')); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Name(~) error = %v", err)
	}
}

func TestAll_Snapshot(t *testing.T) {
	r := newTestRegistry(t)
	early := r.All(0)
	late := r.All(200)
	if len(early) >= len(late) {
		t.Errorf("All(0) has %d entries, All(200) has %d", len(early), len(late))
	}
	if early["MintToken"] != "M" || early["CreateToken"] != "T" {
		t.Errorf("All(0) MintToken=%q CreateToken=%q", early["MintToken"], early["CreateToken"])
	}
	if _, ok := early["BurnToken"]; ok {
		t.Error("BurnToken should not be active at height 0")
	}
	for name, code := range late {
		c, err := r.Resolve(code, 200)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", code, err)
		}
		got, _ := r.Name(c)
		if got != name {
			t.Errorf("code %s names %s, want %s", code, got, name)
		}
	}
}

func TestDefinitions_Unique(t *testing.T) {
	codes := make(map[Code]bool)
	for _, d := range definitions {
		if codes[d.code] {
			t.Errorf("code %q defined twice", d.code)
		}
		codes[d.code] = true
	}
}
