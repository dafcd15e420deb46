package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devclassik/harmoney-backend-sub000/internal/identity"
	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
	"github.com/devclassik/harmoney-backend-sub000/internal/logging"
	"github.com/devclassik/harmoney-backend-sub000/internal/metrics"
	"github.com/devclassik/harmoney-backend-sub000/internal/notification"
	"github.com/devclassik/harmoney-backend-sub000/internal/store"
	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

const referencePrefix = "CRD-"

var (
	// ErrMalformedNotification is returned for payloads that are not a usable transfer.
	ErrMalformedNotification = errors.New("malformed notification")
	// ErrWalletNotFound is returned when no wallet matches the credited account routing.
	ErrWalletNotFound = errors.New("no wallet for credited account")
	// ErrDuplicateNotification is returned for redelivered transfers. Nothing is applied.
	ErrDuplicateNotification = errors.New("notification already processed")
)

// OwnerDirectory resolves wallet owners for notifications.
type OwnerDirectory interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
}

// Service applies inbound transfer notifications to wallets.
type Service struct {
	uow        store.UnitOfWork
	wallets    wallet.Store
	owners     OwnerDirectory
	dispatcher notification.Dispatcher
	logger     *slog.Logger
}

// NewService prepares the inbound credit processor.
func NewService(uow store.UnitOfWork, wallets wallet.Store, owners OwnerDirectory, dispatcher notification.Dispatcher, logger *slog.Logger) (*Service, error) {
	if uow == nil || wallets == nil {
		return nil, fmt.Errorf("unit of work and wallet store are required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{uow: uow, wallets: wallets, owners: owners, dispatcher: dispatcher, logger: logger}, nil
}

// Process credits the wallet addressed by a transfer notification and records a
// SUCCESSFUL CREDIT entry. The dedup claim, the balance increment and the ledger entry
// commit together. The owner is then notified on a best-effort basis.
func (s *Service) Process(ctx context.Context, n Notification) (ledger.Transaction, error) {
	log := logging.FromContext(ctx, s.logger)

	if n.Type != TypeTransfer || n.Data == nil {
		metrics.CreditProcessed("malformed")
		return ledger.Transaction{}, fmt.Errorf("%w: type %q", ErrMalformedNotification, n.Type)
	}
	data := *n.Data
	providerTxID := data.ProviderTxID()
	if providerTxID == "" || data.CreditAccountNumber == "" || data.DestinationInstitutionCode == "" {
		metrics.CreditProcessed("malformed")
		return ledger.Transaction{}, fmt.Errorf("%w: missing transfer identifiers", ErrMalformedNotification)
	}
	amount, err := wallet.NormalizeAmount(data.Amount)
	if err != nil {
		metrics.CreditProcessed("malformed")
		return ledger.Transaction{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	log = log.With("provider_tx_id", providerTxID, "account_number", data.CreditAccountNumber, "bank_code", data.DestinationInstitutionCode)

	w, err := s.wallets.FindByAccountRouting(ctx, data.CreditAccountNumber, data.DestinationInstitutionCode)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			metrics.CreditProcessed("unattributed")
			log.Error("inbound credit for unknown account", "alert", "unattributed_credit", "amount", amount.String(), "counterparty", data.DebitAccountName)
			return ledger.Transaction{}, ErrWalletNotFound
		}
		return ledger.Transaction{}, err
	}

	var credit ledger.Transaction
	err = s.uow.Within(ctx, func(ctx context.Context, st store.Stores) error {
		if err := st.Ledger.ClaimInbound(ctx, providerTxID); err != nil {
			return err
		}
		after, err := st.Wallets.ApplyCredit(ctx, w.ID, amount)
		if err != nil {
			return err
		}
		credit, err = st.Ledger.Open(ctx, ledger.Transaction{
			Reference:             ledger.NewReference(referencePrefix),
			Type:                  ledger.TypeCredit,
			Category:              ledger.CategoryBankTransfer,
			Status:                ledger.StatusSuccessful,
			Amount:                amount,
			PreviousWalletBalance: after.MainBalance.Sub(amount),
			CurrentWalletBalance:  after.MainBalance,
			DestinationWalletID:   w.ID,
			SourceRefID:           providerTxID,
			Narration:             data.Narration,
			Counterparty:          data.DebitAccountName,
			Metadata: map[string]string{
				"session_id":           data.SessionID,
				"debit_account_number": data.DebitAccountNumber,
				"payment_reference":    data.PaymentReference,
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			metrics.CreditProcessed("duplicate")
			log.Info("duplicate inbound notification ignored")
			return ledger.Transaction{}, ErrDuplicateNotification
		}
		return ledger.Transaction{}, fmt.Errorf("apply credit: %w", err)
	}

	metrics.CreditProcessed("applied")
	log.Info("inbound credit applied", "reference", credit.Reference, "wallet_id", w.ID, "amount", amount.String())

	s.notify(ctx, log, w, credit)
	return credit, nil
}

func (s *Service) notify(ctx context.Context, log *slog.Logger, w wallet.Wallet, credit ledger.Transaction) {
	if s.owners == nil || s.dispatcher == nil {
		return
	}
	owner, err := s.owners.FindByID(ctx, w.OwnerID)
	if err != nil {
		log.Warn("credit notification skipped", "reason", "owner lookup failed", "error", err)
		return
	}
	if !owner.NotificationsEnabled {
		return
	}
	if err := s.dispatcher.NotifyCredit(context.WithoutCancel(ctx), notification.CreditNotice{
		UserID:           owner.ID,
		Email:            owner.Email,
		DisplayName:      owner.DisplayName(),
		CounterpartyName: credit.Counterparty,
		Amount:           credit.Amount,
		Currency:         w.Currency,
		Reference:        credit.Reference,
	}); err != nil {
		log.Warn("credit notification failed", "reference", credit.Reference, "error", err)
	}
}
