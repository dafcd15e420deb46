package funding

import "github.com/shopspring/decimal"

// TypeTransfer is the only notification type that moves money into a wallet.
const TypeTransfer = "transfer"

// Notification is the payload the payment rail pushes to the webhook.
type Notification struct {
	Type string        `json:"type"`
	Data *TransferData `json:"data"`
}

// TransferData describes an inbound transfer to a virtual account.
type TransferData struct {
	ID                         string          `json:"_id"`
	SessionID                  string          `json:"sessionId"`
	CreditAccountNumber        string          `json:"creditAccountNumber"`
	DestinationInstitutionCode string          `json:"destinationInstitutionCode"`
	Amount                     decimal.Decimal `json:"amount"`
	Narration                  string          `json:"narration"`
	DebitAccountName           string          `json:"debitAccountName"`
	DebitAccountNumber         string          `json:"debitAccountNumber"`
	PaymentReference           string          `json:"paymentReference"`
}

// ProviderTxID is the provider's unique id for the transfer, used for redelivery dedup.
func (d TransferData) ProviderTxID() string {
	if d.ID != "" {
		return d.ID
	}
	return d.SessionID
}
