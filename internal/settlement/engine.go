package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devclassik/harmoney-backend-sub000/internal/gateway"
	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
	"github.com/devclassik/harmoney-backend-sub000/internal/logging"
	"github.com/devclassik/harmoney-backend-sub000/internal/metrics"
	"github.com/devclassik/harmoney-backend-sub000/internal/store"
	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

const referencePrefix = "HMY-"

var (
	// ErrInsufficientBalance is returned when the reservation fails. No ledger entry exists.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrGatewayFailure is returned with the FAILED entry when the rail declined or errored.
	ErrGatewayFailure = errors.New("payment gateway failure")
	// ErrGatewayTimeout is returned with the FAILED entry when the rail did not answer in time.
	ErrGatewayTimeout = errors.New("payment gateway timeout")
	// ErrInvalidPurchase covers unknown categories and non-positive amounts.
	ErrInvalidPurchase = errors.New("invalid purchase")
	// ErrWalletNotFound is returned when the buyer has no live wallet.
	ErrWalletNotFound = errors.New("wallet not found")
)

var purchasable = map[ledger.Category]bool{
	ledger.CategoryAirtime:     true,
	ledger.CategoryData:        true,
	ledger.CategoryCableTV:     true,
	ledger.CategoryElectricity: true,
}

// PINVerifier checks the buyer's transaction PIN.
type PINVerifier interface {
	VerifyPIN(ctx context.Context, userID, pin string) error
}

// Engine runs the debit state machine: reserve, open, call the rail, then settle or
// release and finalize. Every balance change and its ledger transition share one unit of work.
type Engine struct {
	uow     store.UnitOfWork
	wallets wallet.Store
	ledger  ledger.Ledger
	gateway gateway.PaymentGateway
	pins    PINVerifier
	timeout time.Duration
	logger  *slog.Logger
}

// Options configures an Engine.
type Options struct {
	UnitOfWork store.UnitOfWork
	Wallets    wallet.Store
	Ledger     ledger.Ledger
	Gateway    gateway.PaymentGateway
	PINs       PINVerifier
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewEngine constructs the settlement engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.UnitOfWork == nil || opts.Wallets == nil || opts.Ledger == nil || opts.Gateway == nil {
		return nil, fmt.Errorf("settlement: unit of work, wallets, ledger and gateway are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Engine{
		uow:     opts.UnitOfWork,
		wallets: opts.Wallets,
		ledger:  opts.Ledger,
		gateway: opts.Gateway,
		pins:    opts.PINs,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}, nil
}

// PurchaseInput captures a bill payment or VAS purchase.
type PurchaseInput struct {
	UserID    string
	Category  ledger.Category
	Amount    decimal.Decimal
	PIN       string
	Narration string
	// Fields is forwarded to the rail untouched.
	Fields map[string]string
}

// Purchase debits the buyer's wallet for a purchase. The returned entry is terminal, or
// PENDING when the rail accepted the request without resolving it. Gateway failures return
// the FAILED entry together with ErrGatewayFailure or ErrGatewayTimeout.
func (e *Engine) Purchase(ctx context.Context, input PurchaseInput) (ledger.Transaction, error) {
	if !purchasable[input.Category] {
		return ledger.Transaction{}, fmt.Errorf("%w: unsupported category %q", ErrInvalidPurchase, input.Category)
	}
	amount, err := wallet.NormalizeAmount(input.Amount)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidPurchase, err)
	}
	// The rail is paid in minor units; the debit must match what it charges.
	if !wallet.InMinorUnits(amount) {
		return ledger.Transaction{}, fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidPurchase, wallet.MinorUnitScale)
	}

	w, err := e.wallets.GetByOwner(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return ledger.Transaction{}, ErrWalletNotFound
		}
		return ledger.Transaction{}, err
	}
	if e.pins != nil {
		if err := e.pins.VerifyPIN(ctx, input.UserID, input.PIN); err != nil {
			return ledger.Transaction{}, err
		}
	}

	reference := ledger.NewReference(referencePrefix)
	log := logging.FromContext(ctx, e.logger).With("reference", reference, "wallet_id", w.ID, "category", input.Category)

	var opened ledger.Transaction
	err = e.uow.Within(ctx, func(ctx context.Context, s store.Stores) error {
		reserved, err := s.Wallets.Reserve(ctx, w.ID, amount)
		if err != nil {
			return err
		}
		opened, err = s.Ledger.Open(ctx, ledger.Transaction{
			Reference:             reference,
			Type:                  ledger.TypeDebit,
			Category:              input.Category,
			Status:                ledger.StatusInitialized,
			Amount:                amount,
			Fee:                   decimal.Zero,
			PreviousWalletBalance: reserved.MainBalance,
			CurrentWalletBalance:  reserved.MainBalance,
			SourceWalletID:        w.ID,
			Narration:             input.Narration,
			Metadata:              input.Fields,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			log.Info("purchase rejected", "reason", "insufficient_balance")
			return ledger.Transaction{}, ErrInsufficientBalance
		}
		return ledger.Transaction{}, fmt.Errorf("reserve funds: %w", err)
	}

	// The caller cannot abort a reservation once the rail has been contacted.
	settleCtx := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(settleCtx, e.timeout)
	start := time.Now()
	res, callErr := e.gateway.Purchase(callCtx, gateway.PurchaseRequest{
		Service:   string(input.Category),
		Reference: reference,
		Amount:    amount,
		Fields:    input.Fields,
	})
	cancel()

	status, cause := outcomeOf(res, callErr)
	metrics.GatewayCall("purchase", outcomeLabel(status, cause), start)
	switch {
	case errors.Is(cause, ErrGatewayTimeout):
		log.Warn("gateway call failed", "outcome", "timeout", "error", callErr)
	case cause != nil:
		log.Warn("gateway call failed", "outcome", "failure", "error", callErr, "code", res.Code, "message", res.Message)
	}

	final, err := e.resolve(settleCtx, opened, status, res.ProviderRef)
	if err != nil {
		log.Error("finalize debit failed", "status", status, "error", err)
		return final, err
	}
	log.Info("purchase finalized", "status", final.Status, "source_ref_id", final.SourceRefID)
	return final, cause
}

// LookupAccount resolves a bank account through the rail.
func (e *Engine) LookupAccount(ctx context.Context, accountNumber, bankCode string) (gateway.Account, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	start := time.Now()
	acct, err := e.gateway.AccountLookup(callCtx, accountNumber, bankCode)
	outcome := "successful"
	if err != nil {
		outcome = "failed"
	}
	metrics.GatewayCall("account_lookup", outcome, start)
	return acct, err
}

// resolve applies target to an open debit inside one unit of work. SUCCESSFUL settles the
// reserved amount, FAILED and REVERSED release it, PENDING keeps the reservation in place.
// The guarded Finalize ensures the balance change happens at most once per debit.
func (e *Engine) resolve(ctx context.Context, tx ledger.Transaction, target ledger.Status, providerRef string) (ledger.Transaction, error) {
	held := tx.Amount.Add(tx.Fee)

	var final ledger.Transaction
	err := e.uow.Within(ctx, func(ctx context.Context, s store.Stores) error {
		outcome := ledger.Outcome{Status: target, SourceRefID: providerRef}

		switch target {
		case ledger.StatusSuccessful:
			w, err := s.Wallets.Settle(ctx, tx.SourceWalletID, held)
			if err != nil {
				return fmt.Errorf("settle: %w", err)
			}
			outcome.CurrentWalletBalance = decimal.NewNullDecimal(w.MainBalance)
		case ledger.StatusFailed, ledger.StatusReversed:
			w, err := s.Wallets.ReleaseReservation(ctx, tx.SourceWalletID, held)
			if err != nil {
				return fmt.Errorf("release: %w", err)
			}
			outcome.CurrentWalletBalance = decimal.NewNullDecimal(w.MainBalance)
		}

		var err error
		final, err = s.Ledger.Finalize(ctx, tx.ID, outcome)
		return err
	})
	if err != nil {
		if final.ID == "" {
			final = tx
		}
		return final, err
	}
	if final.Status.Terminal() {
		metrics.DebitFinalized(string(final.Category), string(final.Status))
	}
	return final, nil
}

func outcomeOf(res gateway.Result, err error) (ledger.Status, error) {
	if err != nil {
		if errors.Is(err, gateway.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return ledger.StatusFailed, fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return ledger.StatusFailed, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	switch {
	case res.Succeeded():
		return ledger.StatusSuccessful, nil
	case res.Status == gateway.StatusPending:
		return ledger.StatusPending, nil
	default:
		msg := res.Message
		if msg == "" {
			msg = "declined"
		}
		return ledger.StatusFailed, fmt.Errorf("%w: %s", ErrGatewayFailure, msg)
	}
}

func outcomeLabel(status ledger.Status, cause error) string {
	if errors.Is(cause, ErrGatewayTimeout) {
		return "timeout"
	}
	return string(status)
}
