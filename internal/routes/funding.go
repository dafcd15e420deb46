package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/devclassik/harmoney-backend-sub000/internal/funding"
)

// RegisterWebhookRoutes wires the payment rail callback. It sits outside the JWT group.
func RegisterWebhookRoutes(app *fiber.App, h *funding.Handler, verify fiber.Handler) {
	app.Post("/webhooks/gateway", verify, h.Webhook)
}
