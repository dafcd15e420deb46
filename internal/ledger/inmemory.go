package ledger

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	transactions map[string]Transaction
	references   map[string]string
	inbound      map[string]time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		transactions: make(map[string]Transaction),
		references:   make(map[string]string),
		inbound:      make(map[string]time.Time),
	}
}

func (l *inMemoryLedger) Open(_ context.Context, entry Transaction) (Transaction, error) {
	if err := validateOpen(entry); err != nil {
		return Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.references[entry.Reference]; exists {
		return Transaction{}, ErrDuplicateTransaction
	}

	now := time.Now().UTC()
	entry.ID = uuid.NewString()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if entry.Status.Terminal() {
		entry.FinalizedAt = &now
	}
	entry.Metadata = maps.Clone(entry.Metadata)

	l.transactions[entry.ID] = entry
	l.references[entry.Reference] = entry.ID
	return entry, nil
}

func (l *inMemoryLedger) Finalize(_ context.Context, id string, outcome Outcome) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status.Terminal() {
		return tx, ErrAlreadyFinalized
	}
	if !CanTransition(tx.Status, outcome.Status) {
		return tx, ErrInvalidTransition
	}

	now := time.Now().UTC()
	tx.Status = outcome.Status
	if outcome.SourceRefID != "" {
		tx.SourceRefID = outcome.SourceRefID
	}
	if outcome.CurrentWalletBalance.Valid {
		tx.CurrentWalletBalance = outcome.CurrentWalletBalance.Decimal
	}
	tx.UpdatedAt = now
	if tx.Status.Terminal() {
		tx.FinalizedAt = &now
	}
	l.transactions[id] = tx
	return tx, nil
}

func (l *inMemoryLedger) AttachSourceRef(_ context.Context, id, sourceRefID string) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.SourceRefID != "" {
		if tx.SourceRefID == sourceRefID {
			return tx, nil
		}
		return tx, ErrInvalidTransition
	}
	tx.SourceRefID = sourceRefID
	tx.UpdatedAt = time.Now().UTC()
	l.transactions[id] = tx
	return tx, nil
}

func (l *inMemoryLedger) Get(_ context.Context, id string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (l *inMemoryLedger) GetByReference(ctx context.Context, reference string) (Transaction, error) {
	l.mu.RLock()
	id, ok := l.references[reference]
	l.mu.RUnlock()
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return l.Get(ctx, id)
}

func (l *inMemoryLedger) History(_ context.Context, filter Filter) (Page, error) {
	filter = filter.normalized()

	l.mu.RLock()
	var matched []Transaction
	for _, tx := range l.transactions {
		if matches(tx, filter) {
			matched = append(matched, tx)
		}
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Reference > matched[j].Reference
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := Page{Total: len(matched), Limit: filter.Limit, Offset: filter.Offset}
	if filter.Offset >= len(matched) {
		return page, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = matched[filter.Offset:end]
	return page, nil
}

func (l *inMemoryLedger) OpenDebitsBefore(_ context.Context, cutoff time.Time, limit int) ([]Transaction, error) {
	l.mu.RLock()
	var out []Transaction
	for _, tx := range l.transactions {
		if tx.Type == TypeDebit && !tx.Status.Terminal() && tx.CreatedAt.Before(cutoff) {
			out = append(out, tx)
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *inMemoryLedger) ClaimInbound(_ context.Context, providerTxID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.inbound[providerTxID]; exists {
		return ErrDuplicateTransaction
	}
	l.inbound[providerTxID] = time.Now().UTC()
	return nil
}

// Checkpoint snapshots the ledger and returns a function restoring that snapshot.
func (l *inMemoryLedger) Checkpoint() func() {
	l.mu.RLock()
	transactions := maps.Clone(l.transactions)
	references := maps.Clone(l.references)
	inbound := maps.Clone(l.inbound)
	l.mu.RUnlock()
	return func() {
		l.mu.Lock()
		l.transactions = transactions
		l.references = references
		l.inbound = inbound
		l.mu.Unlock()
	}
}

func matches(tx Transaction, f Filter) bool {
	if tx.SourceWalletID != f.WalletID && tx.DestinationWalletID != f.WalletID {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// Backdate shifts an entry's creation time. Test helper for sweep and ordering scenarios
// when using the in-memory ledger.
func Backdate(l Ledger, id string, by time.Duration) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if tx, exists := mem.transactions[id]; exists {
			tx.CreatedAt = tx.CreatedAt.Add(-by)
			mem.transactions[id] = tx
		}
	}
}
