// Package units converts human-entered decimal amounts into a chain's
// integer minor unit without floating point rounding.
package units

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Decimal places of the supported chains' major units.
const (
	EtherDecimals = 18 // 1 ETH = 10^18 wei
	SolDecimals   = 9  // 1 SOL = 10^9 lamports
)

// LamportsPerSol is the fixed keypair-chain conversion factor.
const LamportsPerSol uint64 = 1_000_000_000

// Conversion errors.
var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrFractionalUnit = errors.New("amount is finer than the minor unit")
	ErrNonPositive    = errors.New("amount must be positive")
	ErrOverflow       = errors.New("amount overflows uint64")
)

// Amount is a decimal quantity in a chain's major unit. It decodes from
// either a JSON number or a JSON string so "1.5" and 1.5 are equivalent.
type Amount string

// UnmarshalJSON accepts a JSON number or string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	*a = Amount(n.String())
	return nil
}

// IsZero reports whether no amount was given.
func (a Amount) IsZero() bool { return a == "" }

// ToMinor converts a to an integer count of minor units, where one major
// unit equals 10^decimals minor units. Amounts that would need a fractional
// minor unit are rejected rather than rounded.
func (a Amount) ToMinor(decimals int) (*big.Int, error) {
	if a == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	r, ok := new(big.Rat).SetString(string(a))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, string(a))
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %s", ErrFractionalUnit, string(a))
	}
	return new(big.Int).Set(r.Num()), nil
}

// ToMinorUint64 is ToMinor for chains whose minor unit fits in a uint64.
// Zero and negative amounts are rejected.
func (a Amount) ToMinorUint64(decimals int) (uint64, error) {
	v, err := a.ToMinor(decimals)
	if err != nil {
		return 0, err
	}
	if v.Sign() <= 0 {
		return 0, ErrNonPositive
	}
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}

// ParseBig parses a non-negative integer given as decimal or 0x-prefixed hex.
// An empty string yields nil.
func ParseBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}
