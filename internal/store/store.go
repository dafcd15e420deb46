package store

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

// Stores groups the repositories bound to a single unit of work.
type Stores struct {
	Wallets wallet.Store
	Ledger  ledger.Ledger
}

// UnitOfWork runs fn atomically: either every write made through the provided Stores
// commits, or none of them does.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

type postgresUnit struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a unit of work backed by database transactions on pool.
func NewPostgres(pool *pgxpool.Pool) UnitOfWork {
	return &postgresUnit{pool: pool}
}

func (u *postgresUnit) Within(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return pgx.BeginTxFunc(ctx, u.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, Stores{
			Wallets: wallet.NewPostgresStore(tx),
			Ledger:  ledger.NewPostgresLedger(tx),
		})
	})
}

type checkpointer interface {
	Checkpoint() func()
}

type memoryUnit struct {
	mu     sync.Mutex
	stores Stores
}

// NewMemory returns a unit of work over in-memory stores. Units are serialized and a
// failed unit restores both stores to their state before it began.
func NewMemory(wallets wallet.Store, l ledger.Ledger) UnitOfWork {
	return &memoryUnit{stores: Stores{Wallets: wallets, Ledger: l}}
}

func (u *memoryUnit) Within(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	var restores []func()
	for _, s := range []any{u.stores.Wallets, u.stores.Ledger} {
		if cp, ok := s.(checkpointer); ok {
			restores = append(restores, cp.Checkpoint())
		}
	}

	if err := fn(ctx, u.stores); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}
