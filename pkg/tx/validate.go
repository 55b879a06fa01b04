package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Validation errors.
var (
	ErrUnsupportedType = errors.New("unsupported transaction type")
	ErrMissingFrom     = errors.New("transaction has no source owner")
	ErrUnexpectedFrom  = errors.New("transaction type takes no source owner")
	ErrNoCredits       = errors.New("transaction has no recipients")
	ErrNoAmounts       = errors.New("transaction has no amounts")
	ErrBadAmount       = errors.New("amount must be positive")
	ErrAmountOverflow  = errors.New("amounts overflow")
	ErrMissingToken    = errors.New("transaction has no token definition")
	ErrTooManyCredits  = errors.New("too many recipients")
	ErrTooManyAmounts  = errors.New("too many amounts")
	ErrBadVersion      = errors.New("unsupported transaction version")
)

// Structural limits.
const (
	MaxCredits = 100
	MaxAmounts = 32
)

// Validate checks transaction structure. It does not look at balances or
// tokens; that needs chain state.
func (tx *Transaction) Validate() error {
	if tx.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrBadVersion, tx.Version)
	}
	if len(tx.To) > MaxCredits {
		return fmt.Errorf("%w: %d, max %d", ErrTooManyCredits, len(tx.To), MaxCredits)
	}
	if err := checkAmounts(tx.Amounts); err != nil {
		return err
	}
	for i, c := range tx.To {
		if c.Owner == "" {
			return fmt.Errorf("recipient %d: empty owner", i)
		}
		if len(c.Amounts) == 0 {
			return fmt.Errorf("recipient %d: %w", i, ErrNoAmounts)
		}
		if err := checkAmounts(c.Amounts); err != nil {
			return fmt.Errorf("recipient %d: %w", i, err)
		}
	}

	switch tx.Type {
	case TypeCoinbase:
		if tx.From != "" {
			return ErrUnexpectedFrom
		}
		if len(tx.To) != 1 {
			return fmt.Errorf("coinbase must pay exactly one owner, got %d", len(tx.To))
		}
	case TypeCreateToken:
		if tx.From == "" {
			return ErrMissingFrom
		}
		if tx.Token == nil {
			return ErrMissingToken
		}
	case TypeMintToken:
		if tx.From != "" {
			return ErrUnexpectedFrom
		}
		if len(tx.Amounts) == 0 {
			return ErrNoAmounts
		}
	case TypeBurnToken:
		if tx.From == "" {
			return ErrMissingFrom
		}
		if len(tx.Amounts) == 0 {
			return ErrNoAmounts
		}
	case TypeUtxosToAccount, TypeAccountToAccount:
		if tx.From == "" {
			return ErrMissingFrom
		}
		if len(tx.To) == 0 {
			return ErrNoCredits
		}
		if _, err := tx.TotalCredits(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, tx.Type)
	}
	return nil
}

func checkAmounts(amounts []types.TokenAmount) error {
	if len(amounts) > MaxAmounts {
		return fmt.Errorf("%w: %d, max %d", ErrTooManyAmounts, len(amounts), MaxAmounts)
	}
	for _, a := range amounts {
		if a.Token == "" {
			return fmt.Errorf("amount %s: missing token", a.Amount)
		}
		if a.Amount <= 0 || a.Amount > types.MaxMoney {
			return fmt.Errorf("%w: %s", ErrBadAmount, a)
		}
	}
	return nil
}
