package chain

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/defiledger/internal/accounts"
	"github.com/Klingon-tech/defiledger/internal/history"
	"github.com/Klingon-tech/defiledger/internal/token"
	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

func TestInvalidateBlock_RestoresState(t *testing.T) {
	c := newTestChain(t, nil)
	c.generate(t, 101)
	before, _ := c.idx.Digest()
	coinsBefore := c.balance(t, accounts.Coins, miner, "DFI")

	c.submit(t, createGold(miner))
	c.generate(t, 1)
	c.submit(t, mint(t, "300@GOLD"))
	c.generate(t, 2)

	created, _ := c.BlockHash(102)
	n, err := c.InvalidateBlock(created)
	if err != nil {
		t.Fatalf("InvalidateBlock: %v", err)
	}
	if n != 3 {
		t.Errorf("removed %d blocks, want 3", n)
	}
	if c.Height() != 101 {
		t.Fatalf("Height = %d, want 101", c.Height())
	}
	if _, err := c.Token("GOLD"); !errors.Is(err, token.ErrNotFound) {
		t.Errorf("GOLD survived rollback: %v", err)
	}
	if got := c.balance(t, accounts.Coins, miner, "DFI"); got != coinsBefore {
		t.Errorf("miner coins = %s, want %s", got, coinsBefore)
	}
	if after, _ := c.idx.Digest(); after != before {
		t.Error("index digest differs from before the removed blocks")
	}

	// Both operations are queued again and land in the next block.
	if c.PendingCount() != 2 {
		t.Fatalf("PendingCount = %d, want 2", c.PendingCount())
	}
	c.generate(t, 1)
	if got := c.balance(t, accounts.Accounts, collateral, "GOLD"); got != 300*types.Coin {
		t.Errorf("GOLD after re-mining = %s", got)
	}
}

func TestRewind_Deterministic(t *testing.T) {
	build := func(heights int) *testChain {
		c := newTestChain(t, nil)
		setupGold(t, c)
		for i := 0; i < heights; i++ {
			c.submit(t, &tx.Transaction{Type: tx.TypeAccountToAccount, From: collateral, Nonce: uint64(1000 + i),
				To: []tx.Credit{{Owner: bob, Amounts: amounts(t, "1@GOLD")}}})
			c.generate(t, 1)
		}
		return c
	}

	long := build(4)
	short := build(2)

	if _, err := long.Rewind(short.Height() + 1); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if long.TipHash() != short.TipHash() {
		t.Fatalf("tips differ after rewind: %s vs %s", long.TipHash(), short.TipHash())
	}
	ld, _ := long.idx.Digest()
	sd, _ := short.idx.Digest()
	if ld != sd {
		t.Error("index digests differ after rewind")
	}
	for _, owner := range []string{bob, collateral} {
		lb := long.balance(t, accounts.Accounts, owner, "GOLD")
		sb := short.balance(t, accounts.Accounts, owner, "GOLD")
		if lb != sb {
			t.Errorf("%s GOLD: %s vs %s", owner, lb, sb)
		}
	}
	lc, _ := long.idx.Count(history.AllOwners(), history.Filter{})
	sc, _ := short.idx.Count(history.AllOwners(), history.Filter{})
	if lc != sc {
		t.Errorf("entry counts %d vs %d", lc, sc)
	}
}

func TestRewind_Edges(t *testing.T) {
	c := newTestChain(t, nil)
	c.generate(t, 2)

	if _, err := c.Rewind(0); !errors.Is(err, ErrGenesisReorg) {
		t.Errorf("Rewind(0) err = %v, want ErrGenesisReorg", err)
	}
	if n, err := c.Rewind(5); err != nil || n != 0 {
		t.Errorf("Rewind above tip = %d, %v", n, err)
	}
	if _, err := c.InvalidateBlock(types.Hash{0x01}); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("InvalidateBlock(unknown) err = %v, want ErrBlockNotFound", err)
	}
}
