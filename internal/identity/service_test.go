package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

func newService() (*Service, *wallet.Service) {
	wallets := wallet.NewService(wallet.NewMemoryStore(), wallet.Defaults{Currency: "NGN", BankCode: "090286", BankName: "Safe Haven MFB"})
	return NewService(NewMemoryRepository(), wallets), wallets
}

func TestRegisterProvisionsEmptyWallet(t *testing.T) {
	svc, wallets := newService()
	ctx := context.Background()
	uid := uuid.NewString()

	user, w, err := svc.Register(ctx, RegisterInput{UserID: uid, Email: " Ada@Example.com ", FirstName: "Ada", LastName: "Obi", NotificationsEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada Obi", user.DisplayName())
	assert.Equal(t, uid, w.OwnerID)
	assert.True(t, w.MainBalance.IsZero())
	assert.True(t, w.BookBalance.IsZero())
	assert.Len(t, w.AccountNumber, 10)

	mine, err := wallets.GetByOwner(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, w.ID, mine.ID)

	_, _, err = svc.Register(ctx, RegisterInput{UserID: uid, Email: "ada@example.com"})
	require.ErrorIs(t, err, ErrExists)
}

func TestRegisterValidatesProfile(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{UserID: "not-a-uuid", Email: "a@b.co"})
	require.ErrorIs(t, err, ErrInvalidProfile)
	_, _, err = svc.Register(ctx, RegisterInput{UserID: uuid.NewString(), Email: "nope"})
	require.ErrorIs(t, err, ErrInvalidProfile)
}

func TestPINLifecycle(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	user, _, err := svc.Register(ctx, RegisterInput{UserID: uuid.NewString(), Email: "pin@example.com"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.VerifyPIN(ctx, user.ID, "1234"), ErrPINNotSet)
	require.ErrorIs(t, svc.SetPIN(ctx, user.ID, "12a4"), ErrInvalidProfile)
	require.ErrorIs(t, svc.SetPIN(ctx, user.ID, "123"), ErrInvalidProfile)

	require.NoError(t, svc.SetPIN(ctx, user.ID, "4321"))
	require.NoError(t, svc.VerifyPIN(ctx, user.ID, "4321"))
	require.ErrorIs(t, svc.VerifyPIN(ctx, user.ID, "0000"), ErrInvalidPIN)
}

func TestSetNotifications(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	user, _, err := svc.Register(ctx, RegisterInput{UserID: uuid.NewString(), Email: "n@example.com", NotificationsEnabled: true})
	require.NoError(t, err)

	require.NoError(t, svc.SetNotifications(ctx, user.ID, false))
	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.NotificationsEnabled)

	require.ErrorIs(t, svc.SetNotifications(ctx, uuid.NewString(), true), ErrNotFound)
}
