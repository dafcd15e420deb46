package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

// Handler exposes profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Email                string `json:"email"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Phone                string `json:"phone"`
	NotificationsEnabled *bool  `json:"notifications_enabled"`
}

type userResponse struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	Phone                string    `json:"phone"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	PINSet               bool      `json:"pin_set"`
	CreatedAt            time.Time `json:"created_at"`
}

func toResponse(u User) userResponse {
	return userResponse{
		ID:                   u.ID,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		Phone:                u.Phone,
		NotificationsEnabled: u.NotificationsEnabled,
		PINSet:               u.HasPIN(),
		CreatedAt:            u.CreatedAt,
	}
}

// Register creates the caller's profile and wallet.
func (h *Handler) Register(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	notify := true
	if req.NotificationsEnabled != nil {
		notify = *req.NotificationsEnabled
	}

	user, w, err := h.service.Register(c.UserContext(), RegisterInput{
		UserID:               uid,
		Email:                req.Email,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		Phone:                req.Phone,
		NotificationsEnabled: notify,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidProfile):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrExists), errors.Is(err, wallet.ErrExists):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"user":   toResponse(user),
		"wallet": wallet.ToResponse(w),
	})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	user, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

// SetPIN configures the caller's transaction PIN.
func (h *Handler) SetPIN(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req struct {
		PIN string `json:"pin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetPIN(c.UserContext(), uid, req.PIN); err != nil {
		switch {
		case errors.Is(err, ErrInvalidProfile):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.SendStatus(http.StatusNoContent)
}

// SetPreferences toggles credit notifications for the caller.
func (h *Handler) SetPreferences(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req struct {
		NotificationsEnabled *bool `json:"notifications_enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.NotificationsEnabled == nil {
		return fiber.NewError(http.StatusBadRequest, "notifications_enabled is required")
	}
	if err := h.service.SetNotifications(c.UserContext(), uid, *req.NotificationsEnabled); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
