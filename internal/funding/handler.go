package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the payment rail webhook.
type Handler struct {
	service *Service
}

// NewHandler constructs a webhook handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Webhook applies an inbound transfer notification. Redeliveries are acknowledged
// without being applied again.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	var n Notification
	if err := c.BodyParser(&n); err != nil {
		return fiber.NewError(http.StatusBadRequest, ErrMalformedNotification.Error())
	}

	credit, err := h.service.Process(c.UserContext(), n)
	if err != nil {
		switch {
		case errors.Is(err, ErrMalformedNotification):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrDuplicateNotification):
			return c.Status(http.StatusOK).JSON(fiber.Map{"status": "duplicate"})
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "applied", "reference": credit.Reference})
}
