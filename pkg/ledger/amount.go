package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned when combining amounts of different currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Amount is a quantity of a currency or other denomination.
type Amount struct {
	Quantity decimal.Decimal `json:"quantity"`
	Currency string          `json:"currency"`
}

// NewAmount creates an amount, normalising the currency code to upper case.
func NewAmount(quantity decimal.Decimal, currency string) Amount {
	return Amount{Quantity: quantity, Currency: strings.ToUpper(currency)}
}

// ParseAmount parses a decimal string such as "1000" or "12.50".
func ParseAmount(quantity, currency string) (Amount, error) {
	if currency == "" {
		return Amount{}, fmt.Errorf("currency is required")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", quantity, err)
	}
	return NewAmount(d, currency), nil
}

// Zero returns the zero amount of the given currency.
func Zero(currency string) Amount {
	return NewAmount(decimal.Zero, currency)
}

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.Currency, b.Currency)
	}
	return Amount{Quantity: a.Quantity.Add(b.Quantity), Currency: a.Currency}, nil
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.Currency, b.Currency)
	}
	return Amount{Quantity: a.Quantity.Sub(b.Quantity), Currency: a.Currency}, nil
}

// Cmp compares quantities. Both amounts must share a currency.
func (a Amount) Cmp(b Amount) int {
	return a.Quantity.Cmp(b.Quantity)
}

// Equal reports whether both amounts have the same currency and quantity.
func (a Amount) Equal(b Amount) bool {
	return a.Currency == b.Currency && a.Quantity.Equal(b.Quantity)
}

// IsPositive reports whether the quantity is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.Quantity.IsPositive()
}

func (a Amount) String() string {
	return a.Quantity.StringFixed(2) + " " + a.Currency
}
