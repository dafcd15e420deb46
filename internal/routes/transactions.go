package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
)

// RegisterTransactionRoutes wires the caller's transaction history.
func RegisterTransactionRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/transactions", h.List)
	r.Get("/transactions/:reference", h.Get)
}
