package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Mine)
	r.Delete("/wallet", h.Close)
	r.Get("/wallets/:walletId/balance", h.Balance)
}
