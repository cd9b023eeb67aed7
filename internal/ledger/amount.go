package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei digits in one ether.
const EtherDecimals = 18

// ErrInvalidAmount is returned when an amount string cannot be represented in wei.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseWei parses a base-10 integer amount of wei.
func ParseWei(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return v, nil
}

// ParseEther converts a decimal ether amount such as "0.55" into wei.
func ParseEther(s string) (*uint256.Int, error) {
	return parseScaled(s, EtherDecimals)
}

// RateFromPercent converts a percentage such as "10" or "2.5" into the
// 1e18-scaled rate stored by the pool ("10" becomes 1e17).
func RateFromPercent(s string) (*uint256.Int, error) {
	return parseScaled(s, RateDecimals-2)
}

// FormatEther renders a wei amount as a decimal ether string.
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei.ToBig(), -EtherDecimals).String()
}

func parseScaled(s string, shift int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	scaled := d.Shift(shift)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, shift)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return v, nil
}

// FormatPercent renders a 1e18-scaled rate as a percentage, e.g. 1e17 as "10".
func FormatPercent(rate *uint256.Int) string {
	if rate == nil {
		return "0"
	}
	return decimal.NewFromBigInt(rate.ToBig(), -(RateDecimals - 2)).String()
}
