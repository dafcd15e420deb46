package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/devclassik/harmoney-backend-sub000/internal/identity"
)

// RegisterIdentityRoutes wires owner profile endpoints. Registration also provisions the wallet.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/users", h.Register)
	r.Get("/users/me", h.Me)
	r.Put("/users/me/pin", h.SetPIN)
	r.Put("/users/me/preferences", h.SetPreferences)
}
