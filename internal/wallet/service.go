package wallet

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const accountNumberAttempts = 5

// Defaults are applied to wallets provisioned without explicit routing details.
type Defaults struct {
	Currency string
	BankCode string
	BankName string
}

// Service exposes wallet lifecycle operations. It never changes balances:
// only the settlement engine and the credit processor change balances, through Store.
type Service struct {
	store    Store
	defaults Defaults
}

// NewService builds a wallet service instance.
func NewService(store Store, defaults Defaults) *Service {
	if defaults.Currency == "" {
		defaults.Currency = "NGN"
	}
	return &Service{store: store, defaults: defaults}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID       string
	Currency      string
	AccountNumber string
	BankCode      string
}

// Create provisions the owner's wallet with zero balances. Without an explicit account
// number a 10-digit virtual account number is generated under the default bank code.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}

	currency := input.Currency
	if currency == "" {
		currency = s.defaults.Currency
	}
	bankCode := input.BankCode
	if bankCode == "" {
		bankCode = s.defaults.BankCode
	}

	now := time.Now().UTC()
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		accountNumber := input.AccountNumber
		if accountNumber == "" {
			generated, err := generateAccountNumber()
			if err != nil {
				return Wallet{}, err
			}
			accountNumber = generated
		}

		w := Wallet{
			ID:            uuid.NewString(),
			OwnerID:       input.OwnerID,
			AccountNumber: accountNumber,
			BankCode:      bankCode,
			BankName:      s.defaults.BankName,
			Currency:      currency,
			MainBalance:   decimal.Zero,
			BookBalance:   decimal.Zero,
			Status:        StatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err := s.store.Create(ctx, w)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, ErrExists) || input.AccountNumber != "" {
			return Wallet{}, err
		}
		if _, ownerErr := s.store.GetByOwner(ctx, input.OwnerID); ownerErr == nil {
			return Wallet{}, ErrExists
		}
	}
	return Wallet{}, fmt.Errorf("could not allocate a unique account number")
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.store.Get(ctx, id)
}

// GetByOwner retrieves the wallet owned by userID.
func (s *Service) GetByOwner(ctx context.Context, userID string) (Wallet, error) {
	return s.store.GetByOwner(ctx, userID)
}

// WalletIDForOwner resolves the owner's wallet identifier.
func (s *Service) WalletIDForOwner(ctx context.Context, userID string) (string, error) {
	w, err := s.store.GetByOwner(ctx, userID)
	if err != nil {
		return "", err
	}
	return w.ID, nil
}

// Balance returns both balances of the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Currency: w.Currency, Main: w.MainBalance, Book: w.BookBalance, AsOf: time.Now().UTC()}, nil
}

// Close soft-deletes the wallet on account closure. Only empty wallets may be closed;
// the store checks the balances in the same step that tombstones the row.
func (s *Service) Close(ctx context.Context, id string) error {
	return s.store.SoftDelete(ctx, id)
}

func generateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9_000_000_000))
	if err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	return fmt.Sprintf("%010d", n.Int64()+1_000_000_000), nil
}
