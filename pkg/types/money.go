package types

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// CurrencyExponent returns the number of minor-unit digits for an ISO 4217 code.
func CurrencyExponent(currency string) int {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "ISK", "CLP", "VND", "HUF":
		return 0
	case "BHD", "KWD", "OMR", "JOD", "TND":
		return 3
	default:
		return 2
	}
}

// FormatMinor renders an amount in minor units as a decimal string ("49900" NOK -> "499.00").
func FormatMinor(amountMinor int64, currency string) string {
	exp := int32(CurrencyExponent(currency))
	return decimal.New(amountMinor, -exp).StringFixed(exp)
}

// ParseMajor converts a decimal amount in major units ("499.5", "4.99e2") into
// minor units. Amounts with more fraction digits than the currency has are rejected.
func ParseMajor(s string, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	exp := CurrencyExponent(currency)
	return toMinor(d.Shift(int32(exp)), fmt.Sprintf("amount %q has more than %d fraction digits", s, exp))
}

// ParseMinor accepts an integer amount in minor units, in any JSON number form.
func ParseMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return toMinor(d, fmt.Sprintf("amount %q is not an integer in minor units", s))
}

func toMinor(d decimal.Decimal, fractionMsg string) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, fractionMsg)
	}
	if d.GreaterThan(maxMinor) || d.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return d.IntPart(), nil
}

// IsCurrencyCode reports whether s looks like an ISO 4217 alphabetic code.
func IsCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
