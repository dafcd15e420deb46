package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devclassik/harmoney-backend-sub000/internal/gateway"
	"github.com/devclassik/harmoney-backend-sub000/internal/gateway/mocks"
	"github.com/devclassik/harmoney-backend-sub000/internal/identity"
	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
	"github.com/devclassik/harmoney-backend-sub000/internal/store"
	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

type fixture struct {
	engine  *Engine
	wallets wallet.Store
	ledger  ledger.Ledger
	gw      *mocks.MockPaymentGateway
	wallet  wallet.Wallet
}

func newFixture(t *testing.T, balance int64, opts ...func(*Options)) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	wallets := wallet.NewMemoryStore()
	l := ledger.NewInMemory()
	gw := mocks.NewMockPaymentGateway(ctrl)

	w := wallet.Wallet{
		ID:            uuid.NewString(),
		OwnerID:       uuid.NewString(),
		AccountNumber: "0123456789",
		BankCode:      "090286",
		Currency:      "NGN",
		Status:        wallet.StatusActive,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, wallets.Create(ctx, w))
	if balance > 0 {
		_, err := wallets.ApplyCredit(ctx, w.ID, decimal.NewFromInt(balance))
		require.NoError(t, err)
	}

	o := Options{
		UnitOfWork: store.NewMemory(wallets, l),
		Wallets:    wallets,
		Ledger:     l,
		Gateway:    gw,
		Timeout:    time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	engine, err := NewEngine(o)
	require.NoError(t, err)
	return fixture{engine: engine, wallets: wallets, ledger: l, gw: gw, wallet: w}
}

func (f fixture) balances(t *testing.T) (main, book decimal.Decimal) {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), f.wallet.ID)
	require.NoError(t, err)
	return w.MainBalance, w.BookBalance
}

func (f fixture) buy(amount int64) (ledger.Transaction, error) {
	return f.engine.Purchase(context.Background(), PurchaseInput{
		UserID:   f.wallet.OwnerID,
		Category: ledger.CategoryAirtime,
		Amount:   decimal.NewFromInt(amount),
		Fields:   map[string]string{"phoneNumber": "08030000000"},
	})
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestPurchaseSuccessSettles(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req gateway.PurchaseRequest) (gateway.Result, error) {
		assert.Equal(t, "airtime", req.Service)
		assert.True(t, req.Amount.Equal(dec(400)))
		assert.Equal(t, "08030000000", req.Fields["phoneNumber"])
		return gateway.Result{Status: gateway.StatusSuccessful, ProviderRef: "prov-1"}, nil
	})

	tx, err := f.buy(400)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccessful, tx.Status)
	assert.Equal(t, "prov-1", tx.SourceRefID)
	assert.True(t, tx.PreviousWalletBalance.Equal(dec(1_000)))
	assert.True(t, tx.CurrentWalletBalance.Equal(dec(600)))
	assert.Equal(t, f.wallet.ID, tx.SourceWalletID)
	assert.Empty(t, tx.DestinationWalletID)

	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(600)))
	assert.True(t, book.Equal(dec(600)))
}

func TestPurchaseGatewayFailureReleases(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(gateway.Result{Status: gateway.StatusFailed, Message: "declined", ProviderRef: "prov-2"}, nil)

	tx, err := f.buy(400)
	require.ErrorIs(t, err, ErrGatewayFailure)
	assert.Equal(t, ledger.StatusFailed, tx.Status)
	assert.Equal(t, "prov-2", tx.SourceRefID)
	assert.True(t, tx.CurrentWalletBalance.Equal(dec(1_000)))

	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(1_000)))
	assert.True(t, book.Equal(dec(1_000)))
}

func TestPurchaseTransportErrorReleases(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(gateway.Result{}, gateway.ErrUnavailable)

	tx, err := f.buy(250)
	require.ErrorIs(t, err, ErrGatewayFailure)
	assert.Equal(t, ledger.StatusFailed, tx.Status)
	main, book := f.balances(t)
	assert.True(t, main.Equal(book))
	assert.True(t, book.Equal(dec(1_000)))
}

func TestPurchaseInsufficientBalanceLeavesNoTrace(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.buy(500)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	page, err := f.ledger.History(context.Background(), ledger.Filter{WalletID: f.wallet.ID})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(100)))
	assert.True(t, book.Equal(dec(100)))
}

func TestPurchaseTimeoutReleases(t *testing.T) {
	f := newFixture(t, 1_000, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ gateway.PurchaseRequest) (gateway.Result, error) {
		<-ctx.Done()
		return gateway.Result{}, ctx.Err()
	})

	tx, err := f.buy(400)
	require.ErrorIs(t, err, ErrGatewayTimeout)
	assert.Equal(t, ledger.StatusFailed, tx.Status)
	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(1_000)))
	assert.True(t, book.Equal(dec(1_000)))
}

func TestPurchaseIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, 1_000)
	ctx, cancel := context.WithCancel(context.Background())
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).DoAndReturn(func(callCtx context.Context, _ gateway.PurchaseRequest) (gateway.Result, error) {
		cancel()
		assert.NoError(t, callCtx.Err())
		return gateway.Result{Status: gateway.StatusSuccessful, ProviderRef: "prov-3"}, nil
	})

	tx, err := f.engine.Purchase(ctx, PurchaseInput{UserID: f.wallet.OwnerID, Category: ledger.CategoryData, Amount: dec(100)})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccessful, tx.Status)
}

func TestConcurrentPurchasesNeverOverdraw(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(gateway.Result{Status: gateway.StatusSuccessful, ProviderRef: "p"}, nil).Times(3)

	const buyers = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.buy(300)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientBalance):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, rejected)
	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(100)))
	assert.True(t, book.Equal(dec(100)))
}

func TestTwoConcurrentPurchasesOneReservationWins(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(gateway.Result{Status: gateway.StatusSuccessful, ProviderRef: "p"}, nil).Times(1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.buy(600)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	_, book := f.balances(t)
	assert.True(t, book.Equal(dec(400)))
}

func TestResolveIsAppliedOnce(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(gateway.Result{Status: gateway.StatusSuccessful, ProviderRef: "prov-4"}, nil)

	tx, err := f.buy(300)
	require.NoError(t, err)

	again, err := f.engine.resolve(context.Background(), tx, ledger.StatusSuccessful, "prov-4")
	require.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
	assert.Equal(t, ledger.StatusSuccessful, again.Status)

	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(700)))
	assert.True(t, book.Equal(dec(700)))
}

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t, 1_000)
	ctx := context.Background()

	_, err := f.engine.Purchase(ctx, PurchaseInput{UserID: f.wallet.OwnerID, Category: ledger.CategoryBankTransfer, Amount: dec(10)})
	require.ErrorIs(t, err, ErrInvalidPurchase)
	_, err = f.engine.Purchase(ctx, PurchaseInput{UserID: f.wallet.OwnerID, Category: ledger.CategoryAirtime, Amount: dec(0)})
	require.ErrorIs(t, err, ErrInvalidPurchase)
	_, err = f.engine.Purchase(ctx, PurchaseInput{UserID: uuid.NewString(), Category: ledger.CategoryAirtime, Amount: dec(10)})
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestPurchaseRejectsFractionsOfMinorUnit(t *testing.T) {
	f := newFixture(t, 1_000)

	_, err := f.engine.Purchase(context.Background(), PurchaseInput{
		UserID:   f.wallet.OwnerID,
		Category: ledger.CategoryAirtime,
		Amount:   decimal.RequireFromString("100.005"),
	})
	require.ErrorIs(t, err, ErrInvalidPurchase)

	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(1_000)))
	assert.True(t, book.Equal(dec(1_000)))
	page, err := f.ledger.History(context.Background(), ledger.Filter{WalletID: f.wallet.ID})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestPurchaseSendsExactAmountAndReference(t *testing.T) {
	f := newFixture(t, 1_000)
	var sent gateway.PurchaseRequest
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req gateway.PurchaseRequest) (gateway.Result, error) {
		sent = req
		return gateway.Result{Status: gateway.StatusSuccessful, ProviderRef: "prov-9"}, nil
	})

	tx, err := f.engine.Purchase(context.Background(), PurchaseInput{
		UserID:   f.wallet.OwnerID,
		Category: ledger.CategoryData,
		Amount:   decimal.RequireFromString("100.01"),
		Fields:   map[string]string{"amount": "1", "reference": "HMY-OTHER"},
	})
	require.NoError(t, err)
	assert.Equal(t, tx.Reference, sent.Reference)
	assert.True(t, sent.Amount.Equal(decimal.RequireFromString("100.01")))
	assert.True(t, tx.Amount.Equal(sent.Amount))
}

type pinCheck func(ctx context.Context, userID, pin string) error

func (p pinCheck) VerifyPIN(ctx context.Context, userID, pin string) error { return p(ctx, userID, pin) }

func TestPurchaseRejectsWrongPINBeforeReserving(t *testing.T) {
	f := newFixture(t, 1_000, func(o *Options) {
		o.PINs = pinCheck(func(_ context.Context, _, pin string) error {
			if pin != "2468" {
				return identity.ErrInvalidPIN
			}
			return nil
		})
	})

	_, err := f.engine.Purchase(context.Background(), PurchaseInput{UserID: f.wallet.OwnerID, Category: ledger.CategoryAirtime, Amount: dec(10), PIN: "1111"})
	require.ErrorIs(t, err, identity.ErrInvalidPIN)
	_, book := f.balances(t)
	assert.True(t, book.Equal(dec(1_000)))
}

func TestPendingPurchaseResolvedBySweep(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(gateway.Result{Status: gateway.StatusPending, ProviderRef: "prov-5"}, nil)

	tx, err := f.buy(200)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, tx.Status)
	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(1_000)))
	assert.True(t, book.Equal(dec(800)))

	f.gw.EXPECT().QueryTransaction(gomock.Any(), tx.Reference).Return(gateway.Result{Status: gateway.StatusSuccessful, ProviderRef: "prov-5"}, nil)
	res, err := f.engine.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Resolved: 1}, res)

	main, book = f.balances(t)
	assert.True(t, main.Equal(dec(800)))
	assert.True(t, book.Equal(dec(800)))
}

func TestSweepReleasesAbandonedDebit(t *testing.T) {
	f := newFixture(t, 1_000)
	ctx := context.Background()

	// A debit opened by a process that died before calling the rail.
	var opened ledger.Transaction
	require.NoError(t, f.engine.uow.Within(ctx, func(ctx context.Context, s store.Stores) error {
		w, err := s.Wallets.Reserve(ctx, f.wallet.ID, dec(500))
		if err != nil {
			return err
		}
		opened, err = s.Ledger.Open(ctx, ledger.Transaction{
			Reference:             ledger.NewReference(referencePrefix),
			Type:                  ledger.TypeDebit,
			Category:              ledger.CategoryElectricity,
			Status:                ledger.StatusInitialized,
			Amount:                dec(500),
			PreviousWalletBalance: w.MainBalance,
			CurrentWalletBalance:  w.MainBalance,
			SourceWalletID:        f.wallet.ID,
		})
		return err
	}))
	ledger.Backdate(f.ledger, opened.ID, time.Hour)

	f.gw.EXPECT().QueryTransaction(gomock.Any(), opened.Reference).Return(gateway.Result{}, gateway.ErrTransactionNotFound)
	res, err := f.engine.Sweep(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)

	final, err := f.ledger.Get(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, final.Status)
	main, book := f.balances(t)
	assert.True(t, main.Equal(dec(1_000)))
	assert.True(t, book.Equal(dec(1_000)))
}

func TestSweepLeavesUnknownOutcomesPending(t *testing.T) {
	f := newFixture(t, 1_000)
	f.gw.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(gateway.Result{Status: gateway.StatusPending}, nil)
	tx, err := f.buy(100)
	require.NoError(t, err)

	f.gw.EXPECT().QueryTransaction(gomock.Any(), tx.Reference).Return(gateway.Result{}, gateway.ErrUnavailable)
	res, err := f.engine.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Pending: 1}, res)

	f.gw.EXPECT().QueryTransaction(gomock.Any(), tx.Reference).Return(gateway.Result{Status: gateway.StatusReversed}, nil)
	res, err = f.engine.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)

	final, err := f.ledger.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReversed, final.Status)
	_, book := f.balances(t)
	assert.True(t, book.Equal(dec(1_000)))
}
