package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Sandbox simulates the payment rail for local development: purchases succeed with a
// synthetic provider reference and every 10-digit account resolves.
type Sandbox struct {
	mu      sync.Mutex
	results map[string]Result
}

// NewSandbox constructs the simulated rail.
func NewSandbox() *Sandbox {
	return &Sandbox{results: make(map[string]Result)}
}

// Purchase approves the request and remembers the outcome for QueryTransaction.
func (s *Sandbox) Purchase(_ context.Context, req PurchaseRequest) (Result, error) {
	res := Result{
		Status:      StatusSuccessful,
		ProviderRef: uuid.NewString(),
		Code:        responseOK,
		Message:     "Approved by sandbox",
		Data:        map[string]any{"service": req.Service, "amount": req.Amount.StringFixed(2)},
	}
	s.mu.Lock()
	s.results[req.Reference] = res
	s.mu.Unlock()
	return res, nil
}

// AccountLookup resolves any well-formed NUBAN.
func (s *Sandbox) AccountLookup(_ context.Context, accountNumber, bankCode string) (Account, error) {
	if len(accountNumber) != 10 || bankCode == "" {
		return Account{}, ErrAccountNotFound
	}
	for _, r := range accountNumber {
		if r < '0' || r > '9' {
			return Account{}, ErrAccountNotFound
		}
	}
	return Account{AccountNumber: accountNumber, BankCode: bankCode, AccountName: "Sandbox Account " + accountNumber[6:], SessionID: uuid.NewString()}, nil
}

// QueryTransaction returns the recorded outcome of a sandbox purchase.
func (s *Sandbox) QueryTransaction(_ context.Context, reference string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[reference]
	if !ok {
		return Result{}, ErrTransactionNotFound
	}
	return res, nil
}
