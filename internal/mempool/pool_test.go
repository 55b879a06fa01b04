package mempool

import (
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

func mintTx(nonce uint64) *tx.Transaction {
	return &tx.Transaction{
		Version: tx.CurrentVersion,
		Type:    tx.TypeMintToken,
		Amounts: []types.TokenAmount{{Token: "GOLD", Amount: types.Coin}},
		Nonce:   nonce,
	}
}

func TestPool_Add(t *testing.T) {
	p := New(10)
	transaction := mintTx(1)
	h, err := p.Add(transaction)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if h != transaction.Hash() {
		t.Errorf("Add returned %s, want %s", h, transaction.Hash())
	}
	if !p.Has(h) || p.Count() != 1 {
		t.Fatal("transaction not in pool")
	}
	if p.Get(h) != transaction {
		t.Error("Get returned a different transaction")
	}
}

func TestPool_Add_Duplicate(t *testing.T) {
	p := New(10)
	if _, err := p.Add(mintTx(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := p.Add(mintTx(1)); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestPool_Add_Rejects(t *testing.T) {
	p := New(10)
	coinbase := &tx.Transaction{Version: tx.CurrentVersion, To: []tx.Credit{{Owner: "m", Amounts: []types.TokenAmount{{Token: "DFI", Amount: 1}}}}}
	if _, err := p.Add(coinbase); !errors.Is(err, ErrCoinbase) {
		t.Errorf("coinbase err = %v, want ErrCoinbase", err)
	}
	bad := mintTx(1)
	bad.Amounts = nil
	if _, err := p.Add(bad); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid err = %v, want ErrValidation", err)
	}
	long := &tx.Transaction{
		Version: tx.CurrentVersion,
		Type:    tx.TypeBurnToken,
		From:    strings.Repeat("x", DefaultMaxOwnerLength+1),
		Amounts: []types.TokenAmount{{Token: "GOLD", Amount: 1}},
	}
	if _, err := p.Add(long); !errors.Is(err, ErrValidation) {
		t.Errorf("policy err = %v, want ErrValidation", err)
	}
}

func TestPool_Full(t *testing.T) {
	p := New(2)
	_, _ = p.Add(mintTx(1))
	_, _ = p.Add(mintTx(2))
	if _, err := p.Add(mintTx(3)); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("err = %v, want ErrPoolFull", err)
	}
}

func TestPool_SelectForBlock_ArrivalOrder(t *testing.T) {
	p := New(100)
	var want []types.Hash
	for _, n := range []uint64{9, 3, 7, 1, 5} {
		h, err := p.Add(mintTx(n))
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		want = append(want, h)
	}

	got := p.SelectForBlock(0)
	if len(got) != len(want) {
		t.Fatalf("selected %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Hash() != want[i] {
			t.Errorf("position %d: got nonce %d", i, got[i].Nonce)
		}
	}
	if limited := p.SelectForBlock(2); len(limited) != 2 || limited[1].Hash() != want[1] {
		t.Errorf("SelectForBlock(2) = %d txs", len(limited))
	}
}

func TestPool_RemoveConfirmedAndClear(t *testing.T) {
	p := New(10)
	a, b, c := mintTx(1), mintTx(2), mintTx(3)
	for _, x := range []*tx.Transaction{a, b, c} {
		if _, err := p.Add(x); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	p.RemoveConfirmed([]*tx.Transaction{b})
	if p.Has(b.Hash()) || p.Count() != 2 {
		t.Fatal("RemoveConfirmed did not remove b")
	}
	p.Remove(a.Hash())

	rest := p.Clear()
	if len(rest) != 1 || rest[0] != c {
		t.Fatalf("Clear returned %d txs", len(rest))
	}
	if p.Count() != 0 {
		t.Errorf("Count after Clear = %d", p.Count())
	}
}
