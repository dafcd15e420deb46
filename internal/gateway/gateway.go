package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks -source=gateway.go PaymentGateway

var (
	// ErrTimeout is returned when the rail did not answer within the configured timeout.
	ErrTimeout = errors.New("payment gateway timeout")
	// ErrUnavailable covers transport errors and 5xx answers.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrAccountNotFound is returned by AccountLookup when the rail cannot resolve the account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransactionNotFound is returned by QueryTransaction for references the rail never received.
	ErrTransactionNotFound = errors.New("transaction not found at provider")
)

// Status is the normalized outcome reported by the rail.
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	// StatusPending means the rail accepted the request but has not resolved it yet.
	StatusPending Status = "pending"
	// StatusReversed means the rail took the money and later refunded it.
	StatusReversed Status = "reversed"
)

// Result is the tagged outcome of a purchase or status query.
type Result struct {
	Status      Status
	ProviderRef string
	Code        string
	Message     string
	Data        map[string]any
}

// Succeeded reports whether the rail confirmed the operation.
func (r Result) Succeeded() bool { return r.Status == StatusSuccessful }

// PurchaseRequest describes a bill payment or VAS purchase. Fields carries the category
// specific payload (phone number, meter number, smartcard number, plan code) untouched.
type PurchaseRequest struct {
	Service   string
	Reference string
	Amount    decimal.Decimal
	Fields    map[string]string
}

// Account is a resolved bank account.
type Account struct {
	AccountNumber string
	BankCode      string
	AccountName   string
	SessionID     string
}

// PaymentGateway is the payment-rail adapter. Authentication is internal to implementations.
type PaymentGateway interface {
	Purchase(ctx context.Context, req PurchaseRequest) (Result, error)
	AccountLookup(ctx context.Context, accountNumber, bankCode string) (Account, error)
	// QueryTransaction asks the rail for the outcome of a previously submitted reference.
	QueryTransaction(ctx context.Context, reference string) (Result, error)
}
