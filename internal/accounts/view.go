package accounts

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// View is an uncommitted overlay on a Store. Operations of one block apply
// to a View; the chain either commits it or throws it away.
type View struct {
	base    *Store
	changes map[slot]types.Amount
	order   []slot
}

// NewView starts an empty overlay.
func (s *Store) NewView() *View {
	return &View{base: s, changes: make(map[slot]types.Amount)}
}

// Fork copies v so speculative changes can be tried and dropped.
func (v *View) Fork() *View {
	f := &View{base: v.base, changes: make(map[slot]types.Amount, len(v.changes)), order: append([]slot(nil), v.order...)}
	for k, a := range v.changes {
		f.changes[k] = a
	}
	return f
}

// Balance returns the overlaid balance.
func (v *View) Balance(book Book, owner string, token types.TokenID) (types.Amount, error) {
	if a, ok := v.changes[slot{book, owner, token}]; ok {
		return a, nil
	}
	return v.base.Balance(book, owner, token)
}

// Add credits amount. It fails with ErrOverflow past MaxMoney.
func (v *View) Add(book Book, owner string, token types.TokenID, amount types.Amount) error {
	if amount < 0 {
		return fmt.Errorf("negative credit %s", amount)
	}
	cur, err := v.Balance(book, owner, token)
	if err != nil {
		return err
	}
	if cur > types.MaxMoney-amount {
		return fmt.Errorf("%w: %s %s token %d", ErrOverflow, owner, book, token)
	}
	v.set(slot{book, owner, token}, cur+amount)
	return nil
}

// Sub debits amount. It fails with ErrInsufficient if the balance would go
// negative and leaves the view unchanged.
func (v *View) Sub(book Book, owner string, token types.TokenID, amount types.Amount) error {
	if amount < 0 {
		return fmt.Errorf("negative debit %s", amount)
	}
	cur, err := v.Balance(book, owner, token)
	if err != nil {
		return err
	}
	if cur < amount {
		return fmt.Errorf("%w: %s has %s of token %d in %s, needs %s",
			ErrInsufficient, owner, cur, token, book, amount)
	}
	v.set(slot{book, owner, token}, cur-amount)
	return nil
}

// Len returns the number of balances the view changed.
func (v *View) Len() int {
	return len(v.order)
}

func (v *View) set(k slot, a types.Amount) {
	if _, ok := v.changes[k]; !ok {
		v.order = append(v.order, k)
	}
	v.changes[k] = a
}

// Commit writes the overlay and its undo record for height through b.
// b must write into the Store's namespace.
func (v *View) Commit(b storage.Batch, height uint64) error {
	undo := make([]undoRecord, 0, len(v.order))
	for _, k := range v.order {
		prev, err := v.base.db.Get(balanceKey(k.book, k.owner, k.token))
		rec := undoRecord{Book: k.book, Owner: k.owner, Token: k.token}
		switch {
		case err == nil:
			amt, derr := decodeAmount(prev)
			if derr != nil {
				return derr
			}
			rec.Prev, rec.Existed = amt, true
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("balance get: %w", err)
		}
		undo = append(undo, rec)

		key := balanceKey(k.book, k.owner, k.token)
		if a := v.changes[k]; a == 0 {
			err = b.Delete(key)
		} else {
			err = b.Put(key, encodeAmount(a))
		}
		if err != nil {
			return err
		}
	}
	data, err := json.Marshal(undo)
	if err != nil {
		return fmt.Errorf("marshal undo: %w", err)
	}
	return b.Put(undoKey(height), data)
}
