package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/devclassik/harmoney-backend-sub000/internal/infra"
)

const transactionColumns = `id, reference, type, category, status, amount::text, fee::text,
        previous_wallet_balance::text, current_wallet_balance::text,
        COALESCE(source_wallet_id::text, ''), COALESCE(destination_wallet_id::text, ''),
        source_ref_id, narration, counterparty, metadata, created_at, updated_at, finalized_at`

// PostgresLedger persists ledger entries in PostgreSQL. Rows are never deleted; the
// deleted_at column exists for regulatory soft-deletion only.
type PostgresLedger struct {
	db infra.DBTX
}

// NewPostgresLedger constructs a Postgres-backed ledger over a pool or an open transaction.
func NewPostgresLedger(db infra.DBTX) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Open inserts a new entry.
func (l *PostgresLedger) Open(ctx context.Context, entry Transaction) (Transaction, error) {
	if err := validateOpen(entry); err != nil {
		return Transaction{}, err
	}
	metadata, err := json.Marshal(nonNilMetadata(entry.Metadata))
	if err != nil {
		return Transaction{}, fmt.Errorf("encode metadata: %w", err)
	}

	var finalizedAt any
	if entry.Status.Terminal() {
		finalizedAt = time.Now().UTC()
	}

	row := l.db.QueryRow(ctx, `INSERT INTO transactions (id, reference, type, category, status, amount, fee,
            previous_wallet_balance, current_wallet_balance, source_wallet_id, destination_wallet_id,
            source_ref_id, narration, counterparty, metadata, finalized_at)
        VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric,
            NULLIF($10, '')::uuid, NULLIF($11, '')::uuid, $12, $13, $14, $15, $16)
        RETURNING `+transactionColumns,
		uuid.New(), entry.Reference, entry.Type, entry.Category, entry.Status,
		entry.Amount.String(), entry.Fee.String(),
		entry.PreviousWalletBalance.String(), entry.CurrentWalletBalance.String(),
		entry.SourceWalletID, entry.DestinationWalletID,
		entry.SourceRefID, entry.Narration, entry.Counterparty, metadata, finalizedAt)

	tx, err := scanTransaction(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Transaction{}, ErrDuplicateTransaction
	}
	return tx, err
}

// Finalize applies a guarded status change; the WHERE clause admits only legal source states
// so two concurrent finalizers cannot both succeed.
func (l *PostgresLedger) Finalize(ctx context.Context, id string, outcome Outcome) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}

	sources := sourcesFor(outcome.Status)
	allowed := make([]string, 0, len(sources))
	for _, s := range sources {
		allowed = append(allowed, string(s))
	}

	var current any
	if outcome.CurrentWalletBalance.Valid {
		current = outcome.CurrentWalletBalance.Decimal.String()
	}

	row := l.db.QueryRow(ctx, `UPDATE transactions
        SET status = $2,
            source_ref_id = CASE WHEN $3 = '' THEN source_ref_id ELSE $3 END,
            current_wallet_balance = COALESCE($4::numeric, current_wallet_balance),
            finalized_at = CASE WHEN $5 THEN now() ELSE finalized_at END,
            updated_at = now()
        WHERE id = $1 AND status = ANY($6)
        RETURNING `+transactionColumns,
		txID, outcome.Status, outcome.SourceRefID, current, outcome.Status.Terminal(), allowed)

	updated, err := scanTransaction(row)
	if !errors.Is(err, ErrNotFound) {
		return updated, err
	}

	existing, err := l.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if existing.Status.Terminal() {
		return existing, ErrAlreadyFinalized
	}
	return existing, ErrInvalidTransition
}

// AttachSourceRef fills an empty provider reference, including on terminal entries.
func (l *PostgresLedger) AttachSourceRef(ctx context.Context, id, sourceRefID string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	updated, err := scanTransaction(l.db.QueryRow(ctx, `UPDATE transactions
        SET source_ref_id = $2, updated_at = now()
        WHERE id = $1 AND source_ref_id = ''
        RETURNING `+transactionColumns, txID, sourceRefID))
	if !errors.Is(err, ErrNotFound) {
		return updated, err
	}

	existing, err := l.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if existing.SourceRefID == sourceRefID {
		return existing, nil
	}
	return existing, ErrInvalidTransition
}

// Get fetches an entry by id.
func (l *PostgresLedger) Get(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	return scanTransaction(l.db.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE id = $1 AND deleted_at IS NULL`, txID))
}

// GetByReference fetches an entry by its public reference.
func (l *PostgresLedger) GetByReference(ctx context.Context, reference string) (Transaction, error) {
	return scanTransaction(l.db.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE reference = $1 AND deleted_at IS NULL`, reference))
}

// History lists a wallet's entries newest first.
func (l *PostgresLedger) History(ctx context.Context, filter Filter) (Page, error) {
	filter = filter.normalized()
	walletID, err := uuid.Parse(filter.WalletID)
	if err != nil {
		return Page{Limit: filter.Limit, Offset: filter.Offset}, nil
	}

	var (
		where strings.Builder
		args  = []any{walletID}
	)
	where.WriteString(`(source_wallet_id = $1 OR destination_wallet_id = $1) AND deleted_at IS NULL`)
	add := func(clause string, value any) {
		args = append(args, value)
		fmt.Fprintf(&where, " AND "+clause, len(args))
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To.UTC())
	}

	page := Page{Limit: filter.Limit, Offset: filter.Offset}
	if err := l.db.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE `+where.String(), args...).Scan(&page.Total); err != nil {
		return Page{}, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := l.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM transactions WHERE %s
        ORDER BY created_at DESC, reference DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where.String(), len(args)-1, len(args)), args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, tx)
	}
	return page, rows.Err()
}

// OpenDebitsBefore lists unresolved debits older than cutoff.
func (l *PostgresLedger) OpenDebitsBefore(ctx context.Context, cutoff time.Time, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = maxPageSize
	}
	rows, err := l.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM transactions
        WHERE type = $1 AND status IN ($2, $3) AND created_at < $4 AND deleted_at IS NULL
        ORDER BY created_at ASC LIMIT $5`,
		TypeDebit, StatusInitialized, StatusPending, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ClaimInbound inserts the provider transaction id into the dedup table.
func (l *PostgresLedger) ClaimInbound(ctx context.Context, providerTxID string) error {
	cmd, err := l.db.Exec(ctx, `INSERT INTO inbound_notifications (provider_tx_id) VALUES ($1)
        ON CONFLICT (provider_tx_id) DO NOTHING`, providerTxID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateTransaction
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx                                   Transaction
		id                                   uuid.UUID
		amount, fee, previous, current, kind string
		category, status                     string
		metadata                             []byte
	)
	if err := row.Scan(&id, &tx.Reference, &kind, &category, &status, &amount, &fee, &previous, &current,
		&tx.SourceWalletID, &tx.DestinationWalletID, &tx.SourceRefID, &tx.Narration, &tx.Counterparty,
		&metadata, &tx.CreatedAt, &tx.UpdatedAt, &tx.FinalizedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}

	tx.ID = id.String()
	tx.Type = Type(kind)
	tx.Category = Category(category)
	tx.Status = Status(status)
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&tx.Amount, amount},
		{&tx.Fee, fee},
		{&tx.PreviousWalletBalance, previous},
		{&tx.CurrentWalletBalance, current},
	} {
		v, err := decimal.NewFromString(field.src)
		if err != nil {
			return Transaction{}, fmt.Errorf("parse amount %q: %w", field.src, err)
		}
		*field.dst = v
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return Transaction{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return tx, nil
}

func nonNilMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
