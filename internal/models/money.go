package models

import "github.com/shopspring/decimal"

// Money is an amount in major currency units. The currency itself is fixed per
// deployment and carried separately where providers require it.
//
// Providers that speak minor units (Stripe, WeChat) convert at the adapter
// boundary through MinorUnits/FromMinorUnits; decimal arithmetic keeps the
// round trip exact.
type Money struct {
	Amount decimal.Decimal `json:"amount"`
}

// NewMoney builds a Money from a major-unit decimal string, e.g. "299.00".
// Invalid input yields zero.
func NewMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Amount: decimal.Zero}
	}
	return Money{Amount: d}
}

// NewMoneyFromMinorUnits builds a Money from an amount in minor units (cents).
func NewMoneyFromMinorUnits(minor int64) Money {
	return Money{Amount: decimal.New(minor, -2)}
}

// MinorUnits returns the amount in minor units (cents), exact for any amount
// with at most two decimal places.
func (m Money) MinorUnits() int64 {
	return m.Amount.Shift(2).IntPart()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// String formats the amount with two decimal places, the form the major-unit
// providers (PayPal, Alipay) expect on the wire.
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

// Equal reports numeric equality regardless of representation.
func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}
