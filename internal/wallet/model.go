package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive = "active"
	StatusClosed = "closed"

	// AmountScale is the number of fractional digits every balance is rounded to.
	AmountScale int32 = 8
	// MinorUnitScale is the number of fractional digits the currency can be paid in.
	MinorUnitScale int32 = 2

	// NUMERIC(20,8) holds at most 12 integer digits.
	maxAmountExponent int32 = 12
	minAmountExponent int32 = -30
)

// MaxAmount is the exclusive upper bound of any single amount.
var MaxAmount = decimal.New(1, maxAmountExponent)

var (
	// ErrInsufficientFunds is returned when a reservation would take the book balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound is returned when no live wallet matches the lookup.
	ErrNotFound = errors.New("wallet not found")
	// ErrExists is returned when the owner or routing pair already has a wallet.
	ErrExists = errors.New("wallet exists")
	// ErrInvalidAmount is returned for zero, negative or out-of-range amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNotEmpty is returned when closing a wallet that still holds funds.
	ErrNotEmpty = errors.New("wallet still holds funds")
	// ErrBalanceInvariant is returned when a mutation would break bookBalance <= mainBalance
	// or mainBalance >= 0. It signals an accounting bug, never a user error.
	ErrBalanceInvariant = errors.New("wallet balance invariant violated")
)

// Wallet is the per-user balance record. Balances are only changed through Store.
type Wallet struct {
	ID            string
	OwnerID       string
	AccountNumber string
	BankCode      string
	BankName      string
	Currency      string
	MainBalance   decimal.Decimal
	BookBalance   decimal.Decimal
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// Reserved is the amount currently held against the wallet by unsettled debits.
func (w Wallet) Reserved() decimal.Decimal {
	return w.MainBalance.Sub(w.BookBalance)
}

// Balance is a point-in-time view of a wallet's funds.
type Balance struct {
	WalletID string
	Currency string
	Main     decimal.Decimal
	Book     decimal.Decimal
	AsOf     time.Time
}

// NormalizeAmount rounds to the storage scale and rejects non-positive values and values
// the balance columns cannot hold. The exponent is checked first so that rounding never
// works on an arbitrarily large coefficient.
func NormalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < minAmountExponent {
		return decimal.Zero, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	if amount.GreaterThanOrEqual(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: must be below %s", ErrInvalidAmount, MaxAmount)
	}
	rounded := amount.Round(AmountScale)
	if !rounded.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	return rounded, nil
}

// InMinorUnits reports whether amount has no digits below the currency's minor unit.
func InMinorUnits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MinorUnitScale))
}

// FormatAmount renders amount with two decimals, or with every stored digit when it
// carries a fraction of the minor unit.
func FormatAmount(amount decimal.Decimal) string {
	if InMinorUnits(amount) {
		return amount.StringFixed(MinorUnitScale)
	}
	return amount.String()
}
