package wallet

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryStore constructs an in-memory wallet store for tests and local development.
func NewMemoryStore() Store {
	return &memoryStore{storage: make(map[string]Wallet)}
}

func (s *memoryStore) Create(_ context.Context, wallet Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.storage {
		if existing.ID == wallet.ID || existing.OwnerID == wallet.OwnerID ||
			(existing.AccountNumber == wallet.AccountNumber && existing.BankCode == wallet.BankCode) {
			return ErrExists
		}
	}
	s.storage[wallet.ID] = wallet
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.storage[id]
	if !ok || w.DeletedAt != nil {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (s *memoryStore) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.storage {
		if w.OwnerID == ownerID && w.DeletedAt == nil {
			return w, nil
		}
	}
	return Wallet{}, ErrNotFound
}

func (s *memoryStore) FindByAccountRouting(_ context.Context, accountNumber, bankCode string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.storage {
		if w.AccountNumber == accountNumber && w.BankCode == bankCode && w.DeletedAt == nil {
			return w, nil
		}
	}
	return Wallet{}, ErrNotFound
}

func (s *memoryStore) Reserve(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(id, amount, func(w *Wallet, amt decimal.Decimal) error {
		if w.BookBalance.LessThan(amt) {
			return ErrInsufficientFunds
		}
		w.BookBalance = w.BookBalance.Sub(amt)
		return nil
	})
}

func (s *memoryStore) Settle(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(id, amount, func(w *Wallet, amt decimal.Decimal) error {
		next := w.MainBalance.Sub(amt)
		if next.IsNegative() || w.BookBalance.GreaterThan(next) {
			return ErrBalanceInvariant
		}
		w.MainBalance = next
		return nil
	})
}

func (s *memoryStore) ReleaseReservation(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(id, amount, func(w *Wallet, amt decimal.Decimal) error {
		next := w.BookBalance.Add(amt)
		if next.GreaterThan(w.MainBalance) {
			return ErrBalanceInvariant
		}
		w.BookBalance = next
		return nil
	})
}

func (s *memoryStore) ApplyCredit(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(id, amount, func(w *Wallet, amt decimal.Decimal) error {
		w.MainBalance = w.MainBalance.Add(amt)
		w.BookBalance = w.BookBalance.Add(amt)
		return nil
	})
}

func (s *memoryStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.storage[id]
	if !ok || w.DeletedAt != nil {
		return ErrNotFound
	}
	if !w.MainBalance.IsZero() || !w.BookBalance.IsZero() {
		return ErrNotEmpty
	}
	now := time.Now().UTC()
	w.DeletedAt = &now
	w.Status = StatusClosed
	w.UpdatedAt = now
	s.storage[id] = w
	return nil
}

// Checkpoint snapshots the store and returns a function restoring that snapshot.
// The in-memory unit of work uses it to roll back a failed unit.
func (s *memoryStore) Checkpoint() func() {
	s.mu.RLock()
	snapshot := maps.Clone(s.storage)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.storage = snapshot
		s.mu.Unlock()
	}
}

// mutate applies fn under the write lock so check and update are one step.
func (s *memoryStore) mutate(id string, amount decimal.Decimal, fn func(w *Wallet, amt decimal.Decimal) error) (Wallet, error) {
	amt, err := NormalizeAmount(amount)
	if err != nil {
		return Wallet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.storage[id]
	if !ok || w.DeletedAt != nil {
		return Wallet{}, ErrNotFound
	}
	if err := fn(&w, amt); err != nil {
		return Wallet{}, err
	}
	w.UpdatedAt = time.Now().UTC()
	s.storage[id] = w
	return w, nil
}
