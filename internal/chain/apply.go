package chain

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/accounts"
	"github.com/Klingon-tech/defiledger/internal/history"
	"github.com/Klingon-tech/defiledger/internal/token"
	"github.com/Klingon-tech/defiledger/internal/txtype"
	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Operation errors.
var (
	ErrInvalidOwner   = errors.New("invalid owner address")
	ErrInactiveType   = errors.New("operation type not active")
	ErrNotMintable    = errors.New("token is not mintable")
	ErrNativeToken    = errors.New("operation not allowed on the native token")
	ErrNotNativeToken = errors.New("only the native token can leave the coins book")
)

// NormalizeOwner validates an address text and returns its canonical
// spelling, so the same address typed twice names the same owner.
func (c *Chain) NormalizeOwner(text string) (string, error) {
	addr, err := c.codec.Decode(text)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidOwner, text)
	}
	if addr.IsZero() {
		return "", fmt.Errorf("%w: %s is the zero address", ErrInvalidOwner, text)
	}
	out, err := c.codec.Encode(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidOwner, text)
	}
	return out, nil
}

// applyTx runs one transaction against w and returns what it did to
// accounts. w is left half-updated on error; callers apply to a fork.
func (c *Chain) applyTx(w *working, t *tx.Transaction, height uint64, txn uint32) (history.Effect, error) {
	eff := history.Effect{TxN: txn, TxID: t.Hash()}

	if t.IsCoinbase() {
		eff.Type = history.BlockRewardType
		return eff, c.applyCoinbase(w, t, &eff)
	}

	code, err := c.registry.Resolve(t.Type.String(), height)
	if err != nil {
		return eff, fmt.Errorf("%w: %s at height %d", ErrInactiveType, t.Type, height)
	}
	if eff.Type, err = c.registry.Name(code); err != nil {
		return eff, err
	}

	switch code {
	case txtype.CreateToken:
		err = c.applyCreateToken(w, t, height, &eff)
	case txtype.MintToken:
		err = c.applyMint(w, t, &eff)
	case txtype.BurnToken:
		err = c.applyBurn(w, t, &eff)
	case txtype.UtxosToAccount:
		err = c.applyUtxosToAccount(w, t, &eff)
	case txtype.AccountToAccount:
		err = c.applyAccountToAccount(w, t, &eff)
	default:
		err = fmt.Errorf("%w: %s", tx.ErrUnsupportedType, eff.Type)
	}
	return eff, err
}

func (c *Chain) applyCoinbase(w *working, t *tx.Transaction, eff *history.Effect) error {
	miner, err := c.NormalizeOwner(t.To[0].Owner)
	if err != nil {
		return err
	}
	var paid []types.TokenAmount
	for _, a := range t.To[0].Amounts {
		tok, err := w.tokens.resolve(a.Token)
		if err != nil {
			return err
		}
		if !tok.IsNative() {
			return fmt.Errorf("%w: coinbase pays %s", ErrNotNativeToken, tok.Symbol)
		}
		if err := w.balances.Add(accounts.Coins, miner, 0, a.Amount); err != nil {
			return err
		}
		paid = append(paid, types.TokenAmount{Token: tok.Symbol, Amount: a.Amount})
	}
	eff.Changes = []history.Change{{Owner: miner, Amounts: paid}}
	return nil
}

func (c *Chain) applyCreateToken(w *working, t *tx.Transaction, height uint64, eff *history.Effect) error {
	payer, err := c.NormalizeOwner(t.From)
	if err != nil {
		return err
	}
	symbol, err := token.NormalizeSymbol(t.Token.Symbol)
	if err != nil {
		return err
	}
	if err := token.ValidateName(t.Token.Name); err != nil {
		return err
	}
	collateral, err := c.NormalizeOwner(t.Token.Collateral)
	if err != nil {
		return err
	}
	switch _, err := w.tokens.resolve(symbol); {
	case err == nil:
		return fmt.Errorf("%w: %s", token.ErrSymbolTaken, symbol)
	case !errors.Is(err, token.ErrNotFound):
		return err
	}

	fee := c.params.TokenCreationFee
	if err := w.balances.Sub(accounts.Coins, payer, 0, fee); err != nil {
		return err
	}
	if err := w.balances.Add(accounts.Coins, c.params.BurnAddress, 0, fee); err != nil {
		return err
	}
	w.tokens.create(&token.Token{
		Symbol:         symbol,
		Name:           t.Token.Name,
		Collateral:     collateral,
		Mintable:       t.Token.Mintable,
		CreationTx:     eff.TxID.String(),
		CreationHeight: height,
	})
	eff.Burn = &history.Change{
		Owner:   c.params.BurnAddress,
		Amounts: []types.TokenAmount{{Token: config.NativeToken, Amount: fee}},
	}
	return nil
}

func (c *Chain) applyMint(w *working, t *tx.Transaction, eff *history.Effect) error {
	for _, a := range t.Amounts {
		tok, err := w.tokens.resolve(a.Token)
		if err != nil {
			return err
		}
		if tok.IsNative() {
			return fmt.Errorf("%w: mint", ErrNativeToken)
		}
		if !tok.Mintable {
			return fmt.Errorf("%w: %s", ErrNotMintable, tok.Symbol)
		}
		if err := w.balances.Add(accounts.Accounts, tok.Collateral, tok.ID, a.Amount); err != nil {
			return err
		}
		eff.Changes = append(eff.Changes, history.Change{
			Owner:   tok.Collateral,
			Amounts: []types.TokenAmount{{Token: tok.Symbol, Amount: a.Amount}},
		})
	}
	return nil
}

func (c *Chain) applyBurn(w *working, t *tx.Transaction, eff *history.Effect) error {
	from, err := c.NormalizeOwner(t.From)
	if err != nil {
		return err
	}
	var debited, burnt []types.TokenAmount
	for _, a := range t.Amounts {
		tok, err := w.tokens.resolve(a.Token)
		if err != nil {
			return err
		}
		if err := w.balances.Sub(accounts.Accounts, from, tok.ID, a.Amount); err != nil {
			return err
		}
		if err := w.balances.Add(accounts.Accounts, c.params.BurnAddress, tok.ID, a.Amount); err != nil {
			return err
		}
		debited = append(debited, types.TokenAmount{Token: tok.Symbol, Amount: -a.Amount})
		burnt = append(burnt, types.TokenAmount{Token: tok.Symbol, Amount: a.Amount})
	}
	eff.Changes = []history.Change{{Owner: from, Amounts: debited}}
	eff.Burn = &history.Change{Owner: c.params.BurnAddress, Amounts: burnt}
	return nil
}

func (c *Chain) applyUtxosToAccount(w *working, t *tx.Transaction, eff *history.Effect) error {
	from, err := c.NormalizeOwner(t.From)
	if err != nil {
		return err
	}
	for _, credit := range t.To {
		to, err := c.NormalizeOwner(credit.Owner)
		if err != nil {
			return err
		}
		var got []types.TokenAmount
		for _, a := range credit.Amounts {
			tok, err := w.tokens.resolve(a.Token)
			if err != nil {
				return err
			}
			if !tok.IsNative() {
				return fmt.Errorf("%w: %s", ErrNotNativeToken, tok.Symbol)
			}
			if err := w.balances.Sub(accounts.Coins, from, 0, a.Amount); err != nil {
				return err
			}
			if err := w.balances.Add(accounts.Accounts, to, 0, a.Amount); err != nil {
				return err
			}
			got = append(got, types.TokenAmount{Token: tok.Symbol, Amount: a.Amount})
		}
		eff.Changes = append(eff.Changes, history.Change{Owner: to, Amounts: got})
	}
	return nil
}

func (c *Chain) applyAccountToAccount(w *working, t *tx.Transaction, eff *history.Effect) error {
	from, err := c.NormalizeOwner(t.From)
	if err != nil {
		return err
	}
	var sent []types.TokenAmount
	var received []history.Change
	for _, credit := range t.To {
		to, err := c.NormalizeOwner(credit.Owner)
		if err != nil {
			return err
		}
		var got []types.TokenAmount
		for _, a := range credit.Amounts {
			tok, err := w.tokens.resolve(a.Token)
			if err != nil {
				return err
			}
			if err := w.balances.Sub(accounts.Accounts, from, tok.ID, a.Amount); err != nil {
				return err
			}
			if err := w.balances.Add(accounts.Accounts, to, tok.ID, a.Amount); err != nil {
				return err
			}
			sent = append(sent, types.TokenAmount{Token: tok.Symbol, Amount: -a.Amount})
			got = append(got, types.TokenAmount{Token: tok.Symbol, Amount: a.Amount})
		}
		received = append(received, history.Change{Owner: to, Amounts: got})
	}
	eff.Changes = append([]history.Change{{Owner: from, Amounts: sent}}, received...)
	return nil
}
