package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceCreateAndBalance(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, Defaults{Currency: "NGN", BankCode: "090286", BankName: "Safe Haven MFB"})

	ctx := context.Background()
	ownerID := uuid.NewString()
	w, err := svc.Create(ctx, CreateInput{OwnerID: ownerID})
	require.NoError(t, err)

	assert.Len(t, w.AccountNumber, 10)
	assert.Equal(t, "090286", w.BankCode)
	assert.True(t, w.MainBalance.IsZero())
	assert.True(t, w.BookBalance.IsZero())

	fetched, err := svc.GetByOwner(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, fetched.ID)

	_, err = store.ApplyCredit(ctx, w.ID, decimal.NewFromInt(2_500))
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, balance.Main.Equal(decimal.NewFromInt(2_500)))
	assert.True(t, balance.Book.Equal(decimal.NewFromInt(2_500)))
}

func TestServiceCreateOnePerOwner(t *testing.T) {
	svc := NewService(NewMemoryStore(), Defaults{BankCode: "090286"})
	ctx := context.Background()
	ownerID := uuid.NewString()

	_, err := svc.Create(ctx, CreateInput{OwnerID: ownerID})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{OwnerID: ownerID})
	assert.ErrorIs(t, err, ErrExists)
}

func TestServiceCloseRequiresEmptyWallet(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, Defaults{BankCode: "090286"})
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString()})
	require.NoError(t, err)
	_, err = store.ApplyCredit(ctx, w.ID, decimal.NewFromInt(10))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Close(ctx, w.ID), ErrNotEmpty)
	_, err = svc.Get(ctx, w.ID)
	require.NoError(t, err)

	empty, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString()})
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx, empty.ID))

	_, err = svc.Get(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
