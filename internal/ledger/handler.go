package ledger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

// OwnerLookup resolves the authenticated user's wallet.
type OwnerLookup interface {
	WalletIDForOwner(ctx context.Context, userID string) (string, error)
}

// Handler exposes read-only transaction history endpoints.
type Handler struct {
	ledger Ledger
	owners OwnerLookup
}

// NewHandler constructs a history handler.
func NewHandler(ledger Ledger, owners OwnerLookup) *Handler {
	return &Handler{ledger: ledger, owners: owners}
}

type transactionResponse struct {
	ID                    string            `json:"id"`
	Reference             string            `json:"reference"`
	Type                  Type              `json:"type"`
	Category              Category          `json:"category,omitempty"`
	Status                Status            `json:"status"`
	Amount                string            `json:"amount"`
	Fee                   string            `json:"fee"`
	PreviousWalletBalance string            `json:"previous_wallet_balance"`
	CurrentWalletBalance  string            `json:"current_wallet_balance"`
	SourceRefID           string            `json:"source_ref_id,omitempty"`
	Narration             string            `json:"narration,omitempty"`
	Counterparty          string            `json:"counterparty,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	FinalizedAt           *time.Time        `json:"finalized_at,omitempty"`
}

// ToResponse shapes an entry for JSON output.
func ToResponse(tx Transaction) any {
	return transactionResponse{
		ID:                    tx.ID,
		Reference:             tx.Reference,
		Type:                  tx.Type,
		Category:              tx.Category,
		Status:                tx.Status,
		Amount:                wallet.FormatAmount(tx.Amount),
		Fee:                   wallet.FormatAmount(tx.Fee),
		PreviousWalletBalance: wallet.FormatAmount(tx.PreviousWalletBalance),
		CurrentWalletBalance:  wallet.FormatAmount(tx.CurrentWalletBalance),
		SourceRefID:           tx.SourceRefID,
		Narration:             tx.Narration,
		Counterparty:          tx.Counterparty,
		Metadata:              tx.Metadata,
		CreatedAt:             tx.CreatedAt,
		FinalizedAt:           tx.FinalizedAt,
	}
}

// List returns the caller's transactions, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	walletID, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	filter := Filter{
		WalletID: walletID,
		Type:     Type(c.Query("type")),
		Status:   Status(c.Query("status")),
		Category: Category(c.Query("category")),
		Limit:    c.QueryInt("limit", defaultPageSize),
		Offset:   c.QueryInt("offset", 0),
	}
	if filter.From, err = parseTime(c.Query("from")); err != nil {
		return fiber.NewError(http.StatusBadRequest, "from must be RFC3339")
	}
	if filter.To, err = parseTime(c.Query("to")); err != nil {
		return fiber.NewError(http.StatusBadRequest, "to must be RFC3339")
	}

	page, err := h.ledger.History(c.UserContext(), filter)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]any, 0, len(page.Items))
	for _, tx := range page.Items {
		items = append(items, ToResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"items":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// Get returns a single transaction by reference. Entries on other wallets are reported as missing.
func (h *Handler) Get(c *fiber.Ctx) error {
	walletID, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	tx, err := h.ledger.GetByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if tx.WalletID() != walletID {
		return fiber.NewError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.Status(http.StatusOK).JSON(ToResponse(tx))
}

func (h *Handler) callerWallet(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	walletID, err := h.owners.WalletIDForOwner(c.UserContext(), uid)
	if err != nil {
		return "", fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	return walletID, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
