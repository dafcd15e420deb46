package settlement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/devclassik/harmoney-backend-sub000/internal/gateway"
	"github.com/devclassik/harmoney-backend-sub000/internal/identity"
	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
)

// Handler exposes purchase and account lookup endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a settlement handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type purchaseRequest struct {
	Amount    decimal.Decimal   `json:"amount"`
	PIN       string            `json:"pin"`
	Narration string            `json:"narration"`
	Fields    map[string]string `json:"fields"`
}

// Purchase debits the caller's wallet for the category in the path.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.engine.Purchase(c.UserContext(), PurchaseInput{
		UserID:    uid,
		Category:  ledger.Category(c.Params("category")),
		Amount:    req.Amount,
		PIN:       req.PIN,
		Narration: req.Narration,
		Fields:    req.Fields,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPurchase):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrInsufficientBalance):
			return fiber.NewError(http.StatusBadRequest, "insufficient balance")
		case errors.Is(err, ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, identity.ErrInvalidPIN), errors.Is(err, identity.ErrPINNotSet):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrGatewayTimeout):
			return c.Status(http.StatusGatewayTimeout).JSON(fiber.Map{"error": "payment gateway timeout", "transaction": ledger.ToResponse(tx)})
		case errors.Is(err, ErrGatewayFailure):
			return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "payment gateway failure", "transaction": ledger.ToResponse(tx)})
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	status := http.StatusCreated
	if tx.Status == ledger.StatusPending {
		status = http.StatusAccepted
	}
	return c.Status(status).JSON(ledger.ToResponse(tx))
}

// LookupAccount resolves an account number and bank code to an account name.
func (h *Handler) LookupAccount(c *fiber.Ctx) error {
	accountNumber := c.Query("account_number")
	bankCode := c.Query("bank_code")
	if accountNumber == "" || bankCode == "" {
		return fiber.NewError(http.StatusBadRequest, "account_number and bank_code are required")
	}

	acct, err := h.engine.LookupAccount(c.UserContext(), accountNumber, bankCode)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, gateway.ErrTimeout):
			return fiber.NewError(http.StatusGatewayTimeout, err.Error())
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_number": acct.AccountNumber,
		"bank_code":      acct.BankCode,
		"account_name":   acct.AccountName,
		"session_id":     acct.SessionID,
	})
}
