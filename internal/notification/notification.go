package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// CreditNotice tells a wallet owner that money arrived.
type CreditNotice struct {
	UserID           string          `json:"user_id"`
	Email            string          `json:"email"`
	DisplayName      string          `json:"display_name"`
	CounterpartyName string          `json:"counterparty_name"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Reference        string          `json:"reference"`
}

// Render returns the subject and body of the credit e-mail.
func (n CreditNotice) Render() (subject, body string) {
	from := n.CounterpartyName
	if from == "" {
		from = "a bank transfer"
	}
	subject = fmt.Sprintf("Credit alert: %s %s", n.Currency, n.Amount.StringFixed(2))
	body = fmt.Sprintf("Hi %s, your wallet was credited with %s %s from %s. Reference: %s.",
		n.DisplayName, n.Currency, n.Amount.StringFixed(2), from, n.Reference)
	return subject, body
}

// Dispatcher delivers credit notifications. Delivery is best effort; callers log and
// discard errors.
type Dispatcher interface {
	NotifyCredit(ctx context.Context, notice CreditNotice) error
}

// LoggerDispatcher writes notices to the structured logger in place of an e-mail gateway.
type LoggerDispatcher struct {
	logger *slog.Logger
}

// NewLoggerDispatcher constructs a logging dispatcher.
func NewLoggerDispatcher(logger *slog.Logger) *LoggerDispatcher {
	return &LoggerDispatcher{logger: logger}
}

// NotifyCredit logs the rendered notice.
func (d *LoggerDispatcher) NotifyCredit(_ context.Context, notice CreditNotice) error {
	if d == nil || d.logger == nil {
		return nil
	}
	subject, body := notice.Render()
	d.logger.Info("credit notification", "to", notice.Email, "subject", subject, "body", body, "reference", notice.Reference)
	return nil
}
