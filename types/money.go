// Package types provides common types used across Patron.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Money is a monetary amount held in the smallest unit of its currency
// (cents, pence, yen). Every operation stays in integer arithmetic; no
// float ever touches an amount.
type Money struct {
	Amount   int64  `json:"amount"`   // smallest unit
	Currency string `json:"currency"` // lowercase ISO 4217: "usd", "eur", "jpy"
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "jpy"} }

// CAD creates a Money value in Canadian Dollars (cents).
func CAD(cents int64) Money { return Money{Amount: cents, Currency: "cad"} }

// AUD creates a Money value in Australian Dollars (cents).
func AUD(cents int64) Money { return Money{Amount: cents, Currency: "aud"} }

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// Sum adds any number of Money values. All must share one currency.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("usd")
	}
	total := values[0]
	for _, v := range values[1:] {
		total = total.Add(v)
	}
	return total
}

// Add returns m + other. Panics on currency mismatch.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract returns m - other. Panics on currency mismatch.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply scales the amount by an integer quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Divide performs integer division of the amount.
func (m Money) Divide(divisor int64) Money {
	if divisor == 0 {
		panic("money: division by zero")
	}
	return Money{Amount: m.Amount / divisor, Currency: m.Currency}
}

// ApplyBps applies a basis-point rate (1500 = 15%) with half-up
// rounding: (amount*bps + 5000) / 10000. Panics if the amount or rate
// is negative.
func (m Money) ApplyBps(bps int64) Money {
	if m.Amount < 0 || bps < 0 {
		panic("money: ApplyBps requires non-negative amount and rate")
	}
	return Money{Amount: (m.Amount*bps + 5000) / 10000, Currency: m.Currency}
}

// Negate flips the sign of the amount.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return m.Negate()
	}
	return m
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan reports m < other. Panics on currency mismatch.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan reports m > other. Panics on currency mismatch.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Min returns the smaller of the two values. Panics on currency mismatch.
func (m Money) Min(other Money) Money {
	m.assertSameCurrency(other)
	if other.Amount < m.Amount {
		return other
	}
	return m
}

// Max returns the larger of the two values. Panics on currency mismatch.
func (m Money) Max(other Money) Money {
	m.assertSameCurrency(other)
	if other.Amount > m.Amount {
		return other
	}
	return m
}

// FormatMajor renders the amount in major units without a symbol:
// "49.00" for USD(4900), "100" for JPY(100).
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	abs := m.Amount
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}

	return fmt.Sprintf("%s%d.%0*d", sign, abs/divisor, decimals, abs%divisor)
}

// String renders the amount with its currency symbol: "$49.00", "¥100".
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON adds a display string alongside the raw fields.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	case "jpy", "cny":
		return "¥"
	case "cad":
		return "C$"
	case "aud":
		return "A$"
	case "nzd":
		return "NZ$"
	default:
		return strings.ToUpper(currency) + " "
	}
}

// currencyDecimals returns how many minor-unit digits a currency carries.
func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr":
		return 0
	default:
		return 2
	}
}
