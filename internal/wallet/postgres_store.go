package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/devclassik/harmoney-backend-sub000/internal/infra"
)

const walletColumns = `id, owner_id, account_number, bank_code, bank_name, currency,
        main_balance::text, book_balance::text, status, created_at, updated_at, deleted_at`

// PostgresStore stores wallets in PostgreSQL. Balance columns are NUMERIC(20,8) and are
// exchanged as text so no precision is lost through float conversion.
type PostgresStore struct {
	db infra.DBTX
}

// NewPostgresStore builds a store over a pool or an open transaction.
func NewPostgresStore(db infra.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a wallet record.
func (s *PostgresStore) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, account_number, bank_code, bank_name, currency,
            main_balance, book_balance, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $10)`,
		walletID, ownerID, w.AccountNumber, w.BankCode, w.BankName, w.Currency,
		w.MainBalance.String(), w.BookBalance.String(), w.Status, w.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	return err
}

// Get fetches a live wallet by identifier.
func (s *PostgresStore) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	return scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+`
        FROM wallets WHERE id = $1 AND deleted_at IS NULL`, walletID))
}

// GetByOwner fetches the live wallet owned by the user.
func (s *PostgresStore) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	return scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+`
        FROM wallets WHERE owner_id = $1 AND deleted_at IS NULL`, owner))
}

// FindByAccountRouting resolves the destination of an inbound transfer.
func (s *PostgresStore) FindByAccountRouting(ctx context.Context, accountNumber, bankCode string) (Wallet, error) {
	return scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+`
        FROM wallets WHERE account_number = $1 AND bank_code = $2 AND deleted_at IS NULL`, accountNumber, bankCode))
}

// Reserve holds amount against the book balance with a conditional decrement.
func (s *PostgresStore) Reserve(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(ctx, id, amount, ErrInsufficientFunds, `UPDATE wallets
        SET book_balance = book_balance - $2::numeric, updated_at = now()
        WHERE id = $1 AND deleted_at IS NULL AND book_balance >= $2::numeric
        RETURNING `+walletColumns)
}

// Settle converts a reservation into a permanent deduction from the main balance.
func (s *PostgresStore) Settle(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(ctx, id, amount, ErrBalanceInvariant, `UPDATE wallets
        SET main_balance = main_balance - $2::numeric, updated_at = now()
        WHERE id = $1 AND deleted_at IS NULL AND main_balance - $2::numeric >= book_balance
        RETURNING `+walletColumns)
}

// ReleaseReservation restores a reservation to the book balance. The main balance is not
// credited back; it was never lowered by the reservation.
func (s *PostgresStore) ReleaseReservation(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(ctx, id, amount, ErrBalanceInvariant, `UPDATE wallets
        SET book_balance = book_balance + $2::numeric, updated_at = now()
        WHERE id = $1 AND deleted_at IS NULL AND book_balance + $2::numeric <= main_balance
        RETURNING `+walletColumns)
}

// ApplyCredit raises both balances in one statement.
func (s *PostgresStore) ApplyCredit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	return s.mutate(ctx, id, amount, ErrNotFound, `UPDATE wallets
        SET main_balance = main_balance + $2::numeric, book_balance = book_balance + $2::numeric, updated_at = now()
        WHERE id = $1 AND deleted_at IS NULL
        RETURNING `+walletColumns)
}

// SoftDelete tombstones an empty wallet; ledger rows keep referencing it.
func (s *PostgresStore) SoftDelete(ctx context.Context, id string) error {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE wallets SET deleted_at = now(), updated_at = now(), status = $2
        WHERE id = $1 AND deleted_at IS NULL AND main_balance = 0 AND book_balance = 0`, walletID, StatusClosed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1 AND deleted_at IS NULL)`, walletID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotEmpty
}

// mutate runs a guarded UPDATE ... RETURNING. When the guard rejects the row it tells
// a missing wallet apart from a failed condition.
func (s *PostgresStore) mutate(ctx context.Context, id string, amount decimal.Decimal, guardErr error, query string) (Wallet, error) {
	amt, err := NormalizeAmount(amount)
	if err != nil {
		return Wallet{}, err
	}
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrNotFound
	}

	w, err := scanWallet(s.db.QueryRow(ctx, query, walletID, amt.String()))
	if !errors.Is(err, ErrNotFound) {
		return w, err
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1 AND deleted_at IS NULL)`, walletID).Scan(&exists); err != nil {
		return Wallet{}, err
	}
	if !exists {
		return Wallet{}, ErrNotFound
	}
	return Wallet{}, guardErr
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		ownerID   uuid.UUID
		main      string
		book      string
		createdAt time.Time
		updatedAt time.Time
		deletedAt *time.Time
	)
	if err := row.Scan(&id, &ownerID, &w.AccountNumber, &w.BankCode, &w.BankName, &w.Currency,
		&main, &book, &w.Status, &createdAt, &updatedAt, &deletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}

	var err error
	if w.MainBalance, err = decimal.NewFromString(main); err != nil {
		return Wallet{}, fmt.Errorf("parse main balance: %w", err)
	}
	if w.BookBalance, err = decimal.NewFromString(book); err != nil {
		return Wallet{}, fmt.Errorf("parse book balance: %w", err)
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	w.DeletedAt = deletedAt
	return w, nil
}
