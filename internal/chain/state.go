package chain

import (
	"strings"

	"github.com/Klingon-tech/defiledger/internal/accounts"
	"github.com/Klingon-tech/defiledger/internal/token"
	"github.com/Klingon-tech/defiledger/pkg/block"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// State holds the current chain tip.
type State struct {
	Height       uint64
	TipHash      types.Hash
	TipTimestamp int64
	Header       *block.Header
}

// working is uncommitted ledger state: balances plus tokens created since
// the last committed block.
type working struct {
	balances *accounts.View
	tokens   *tokenView
}

func (w *working) fork() *working {
	return &working{balances: w.balances.Fork(), tokens: w.tokens.fork()}
}

// tokenView resolves tokens against the store plus pending creations.
type tokenView struct {
	store   *token.Store
	created []*token.Token
	next    types.TokenID
}

func (tv *tokenView) fork() *tokenView {
	return &tokenView{store: tv.store, created: append([]*token.Token(nil), tv.created...), next: tv.next}
}

func (tv *tokenView) resolve(ref string) (*token.Token, error) {
	ref = strings.TrimSpace(ref)
	if id, ok := token.ParseID(ref); ok {
		for _, t := range tv.created {
			if t.ID == id {
				return t, nil
			}
		}
	} else {
		sym := strings.ToUpper(ref)
		for _, t := range tv.created {
			if t.Symbol == sym {
				return t, nil
			}
		}
	}
	return tv.store.Resolve(ref)
}

func (tv *tokenView) create(t *token.Token) {
	t.ID = tv.next
	tv.next++
	tv.created = append(tv.created, t)
}
