package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/devclassik/harmoney-backend-sub000/internal/settlement"
)

// RegisterPurchaseRoutes wires bill payment and lookup endpoints. Guards run before the
// purchase handler only.
func RegisterPurchaseRoutes(r fiber.Router, h *settlement.Handler, guards ...fiber.Handler) {
	handlers := append(guards, h.Purchase)
	r.Post("/purchases/:category", handlers...)
	r.Get("/banks/lookup", h.LookupAccount)
}
