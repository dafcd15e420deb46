package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateTransaction indicates the reference (or provider transaction id for
	// inbound notifications) was already recorded and the operation must not be repeated.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAlreadyFinalized is returned when finalizing an entry that is already terminal.
	ErrAlreadyFinalized = errors.New("transaction already finalized")

	// ErrInvalidTransition is returned for status changes the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid transaction status transition")

	// ErrNotFound is returned when no entry matches.
	ErrNotFound = errors.New("transaction not found")

	// ErrInvalidEntry is returned when an entry fails validation before being written.
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// Type is the direction of money movement relative to the wallet.
type Type string

const (
	TypeDebit  Type = "DEBIT"
	TypeCredit Type = "CREDIT"
)

// Status is the debit state machine:
//
//	INITIALIZED -> SUCCESSFUL | FAILED | PENDING
//	PENDING     -> SUCCESSFUL | FAILED | REVERSED
//
// Credits are written SUCCESSFUL directly.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	// StatusPending marks a debit whose outcome is unknown and needs reconciliation.
	StatusPending    Status = "PENDING"
	StatusSuccessful Status = "SUCCESSFUL"
	StatusFailed     Status = "FAILED"
	StatusReversed   Status = "REVERSED"
)

var transitions = map[Status][]Status{
	StatusInitialized: {StatusSuccessful, StatusFailed, StatusPending},
	StatusPending:     {StatusSuccessful, StatusFailed, StatusReversed},
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusReversed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesFor lists the statuses an entry may be in to move to target.
func sourcesFor(target Status) []Status {
	var out []Status
	for from, nexts := range transitions {
		for _, next := range nexts {
			if next == target {
				out = append(out, from)
			}
		}
	}
	return out
}

// Category tags what the money was spent on or where it came from. Informational only.
type Category string

const (
	CategoryAirtime      Category = "airtime"
	CategoryData         Category = "data"
	CategoryCableTV      Category = "cable-tv"
	CategoryElectricity  Category = "electricity"
	CategoryBankTransfer Category = "bank-transfer"
)

// Transaction is one ledger entry. SourceWalletID is set on debits and
// DestinationWalletID on credits, never both.
type Transaction struct {
	ID                    string
	Reference             string
	Type                  Type
	Category              Category
	Status                Status
	Amount                decimal.Decimal
	Fee                   decimal.Decimal
	PreviousWalletBalance decimal.Decimal
	CurrentWalletBalance  decimal.Decimal
	SourceWalletID        string
	DestinationWalletID   string
	SourceRefID           string
	Narration             string
	Counterparty          string
	Metadata              map[string]string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	FinalizedAt           *time.Time
}

// WalletID returns whichever wallet the entry moved money on.
func (t Transaction) WalletID() string {
	if t.Type == TypeCredit {
		return t.DestinationWalletID
	}
	return t.SourceWalletID
}

// Outcome describes a status change applied by Finalize.
type Outcome struct {
	Status      Status
	SourceRefID string
	// CurrentWalletBalance is recorded when valid; otherwise the stored value is kept.
	CurrentWalletBalance decimal.NullDecimal
}

// Filter narrows History. WalletID is required.
type Filter struct {
	WalletID string
	Type     Type
	Status   Status
	Category Category
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Page is one slice of history, newest first.
type Page struct {
	Items  []Transaction
	Total  int
	Limit  int
	Offset int
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	// Open writes a new entry. Debits must be INITIALIZED, credits SUCCESSFUL.
	Open(ctx context.Context, entry Transaction) (Transaction, error)
	// Finalize moves an entry along the state machine exactly once per edge.
	Finalize(ctx context.Context, id string, outcome Outcome) (Transaction, error)
	// AttachSourceRef records a provider reference that arrived after finalization.
	AttachSourceRef(ctx context.Context, id, sourceRefID string) (Transaction, error)
	Get(ctx context.Context, id string) (Transaction, error)
	GetByReference(ctx context.Context, reference string) (Transaction, error)
	History(ctx context.Context, filter Filter) (Page, error)
	// OpenDebitsBefore lists INITIALIZED and PENDING debits created before cutoff, oldest first.
	OpenDebitsBefore(ctx context.Context, cutoff time.Time, limit int) ([]Transaction, error)
	// ClaimInbound records a provider transaction id, failing with ErrDuplicateTransaction
	// if it was already claimed.
	ClaimInbound(ctx context.Context, providerTxID string) error
}

// NewReference returns a unique, time-sortable reference with the given prefix.
func NewReference(prefix string) string {
	return prefix + ulid.Make().String()
}

func validateOpen(entry Transaction) error {
	switch entry.Type {
	case TypeDebit:
		if entry.Status != StatusInitialized || entry.SourceWalletID == "" || entry.DestinationWalletID != "" {
			return ErrInvalidEntry
		}
	case TypeCredit:
		if entry.Status != StatusSuccessful || entry.DestinationWalletID == "" || entry.SourceWalletID != "" {
			return ErrInvalidEntry
		}
	default:
		return ErrInvalidEntry
	}
	if entry.Reference == "" || !entry.Amount.IsPositive() || entry.Fee.IsNegative() {
		return ErrInvalidEntry
	}
	return nil
}
