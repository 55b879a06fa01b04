package types

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Coin is the number of base units in one whole token.
const Coin = 100_000_000

// MaxMoney caps any single amount.
const MaxMoney = 1_200_000_000 * Coin

// Amount is a fixed-point quantity with 8 decimal places.
type Amount int64

// String renders the amount with exactly 8 decimals ("300.00000000").
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%08d", sign, v/Coin, v%Coin)
}

// ParseAmount parses a decimal string with up to 8 fractional digits.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 8 {
		return 0, fmt.Errorf("amount %q has more than 8 decimals", s)
	}
	frac += strings.Repeat("0", 8-len(frac))

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if w > MaxMoney/Coin {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	v := int64(w)*Coin + int64(f)
	if v > MaxMoney {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	if neg {
		v = -v
	}
	return Amount(v), nil
}

// AmountFromFloat converts a JSON number to an Amount, rounding to the
// nearest base unit.
func AmountFromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount")
	}
	r, _ := new(big.Float).Mul(big.NewFloat(f), big.NewFloat(Coin)).Float64()
	r = math.Round(r)
	if math.Abs(r) > MaxMoney {
		return 0, fmt.Errorf("amount out of range")
	}
	return Amount(r), nil
}

// TokenID is the numeric identifier of a token. Zero is the native coin.
type TokenID uint32

// TokenAmount is an amount of one token, written "amount@token" where token
// is a symbol or a numeric id.
type TokenAmount struct {
	Token  string
	Amount Amount
}

// String renders "amount@token".
func (ta TokenAmount) String() string {
	return ta.Amount.String() + "@" + ta.Token
}

// ParseTokenAmount parses "amount@token". A bare amount means the native coin
// named by defaultToken.
func ParseTokenAmount(s, defaultToken string) (TokenAmount, error) {
	amt, tok, found := strings.Cut(strings.TrimSpace(s), "@")
	if !found {
		tok = defaultToken
	}
	if tok == "" {
		return TokenAmount{}, fmt.Errorf("missing token in %q", s)
	}
	a, err := ParseAmount(amt)
	if err != nil {
		return TokenAmount{}, err
	}
	if a <= 0 {
		return TokenAmount{}, fmt.Errorf("amount must be positive: %q", s)
	}
	return TokenAmount{Token: tok, Amount: a}, nil
}

// MarshalText encodes "amount@token".
func (ta TokenAmount) MarshalText() ([]byte, error) {
	return []byte(ta.String()), nil
}

// UnmarshalText decodes "amount@token". Unlike ParseTokenAmount it accepts
// zero and negative amounts, so stored balance deltas round-trip.
func (ta *TokenAmount) UnmarshalText(text []byte) error {
	amt, tok, found := strings.Cut(string(text), "@")
	if !found || tok == "" {
		return fmt.Errorf("missing token in %q", text)
	}
	a, err := ParseAmount(amt)
	if err != nil {
		return err
	}
	*ta = TokenAmount{Token: tok, Amount: a}
	return nil
}
