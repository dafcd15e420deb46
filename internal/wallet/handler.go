package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	AccountNumber string    `json:"account_number"`
	BankCode      string    `json:"bank_code"`
	BankName      string    `json:"bank_name"`
	Currency      string    `json:"currency"`
	MainBalance   string    `json:"main_balance"`
	BookBalance   string    `json:"book_balance"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToResponse shapes a wallet for JSON output.
func ToResponse(w Wallet) any {
	return walletResponse{
		ID:            w.ID,
		OwnerID:       w.OwnerID,
		AccountNumber: w.AccountNumber,
		BankCode:      w.BankCode,
		BankName:      w.BankName,
		Currency:      w.Currency,
		MainBalance:   FormatAmount(w.MainBalance),
		BookBalance:   FormatAmount(w.BookBalance),
		Status:        w.Status,
		CreatedAt:     w.CreatedAt,
	}
}

// Mine returns the authenticated user's wallet.
func (h *Handler) Mine(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.service.GetByOwner(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(ToResponse(w))
}

// Close closes the authenticated user's wallet. Wallets holding funds cannot be closed.
func (h *Handler) Close(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.service.GetByOwner(c.UserContext(), uid)
	if err == nil {
		err = h.service.Close(c.UserContext(), w.ID)
	}
	switch {
	case err == nil:
		return c.SendStatus(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotEmpty):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// Balance returns the wallet balances. Callers may only read their own wallet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	uid, _ := c.Locals("user_id").(string)

	w, err := h.service.Get(c.UserContext(), walletID)
	if err != nil || w.OwnerID != uid {
		return fiber.NewError(http.StatusNotFound, ErrNotFound.Error())
	}
	balance, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":    walletID,
		"currency":     balance.Currency,
		"main_balance": FormatAmount(balance.Main),
		"book_balance": FormatAmount(balance.Book),
		"timestamp":    balance.AsOf,
	})
}
