package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store persists wallets. Every balance mutation is a single atomic conditional update
// and returns the wallet as it stands immediately after the change.
type Store interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
	FindByAccountRouting(ctx context.Context, accountNumber, bankCode string) (Wallet, error)

	// Reserve lowers the book balance by amount, failing with ErrInsufficientFunds and
	// no side effect when the book balance is smaller than amount.
	Reserve(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	// Settle lowers the main balance by a previously reserved amount.
	Settle(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	// ReleaseReservation raises the book balance by a previously reserved amount.
	// Failed purchases used to credit the main balance instead; that minted money on
	// every failed debit, so release only restores the book balance.
	ReleaseReservation(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	// ApplyCredit raises both balances by amount.
	ApplyCredit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	// SoftDelete tombstones an empty wallet. A wallet holding any balance is left
	// untouched and ErrNotEmpty is returned.
	SoftDelete(ctx context.Context, id string) error
}
