package wallet

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handlerApp(svc *Service, uid string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uid)
		return c.Next()
	})
	h := NewHandler(svc)
	app.Get("/wallet", h.Mine)
	app.Delete("/wallet", h.Close)
	return app
}

func TestHandlerCloseEmptyWallet(t *testing.T) {
	svc := NewService(NewMemoryStore(), Defaults{BankCode: "090286"})
	ownerID := uuid.NewString()
	_, err := svc.Create(context.Background(), CreateInput{OwnerID: ownerID})
	require.NoError(t, err)
	app := handlerApp(svc, ownerID)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodDelete, "/wallet", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/wallet", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodDelete, "/wallet", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandlerCloseRefusesFundedWallet(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, Defaults{BankCode: "090286"})
	ownerID := uuid.NewString()
	w, err := svc.Create(context.Background(), CreateInput{OwnerID: ownerID})
	require.NoError(t, err)
	_, err = store.ApplyCredit(context.Background(), w.ID, decimal.RequireFromString("0.005"))
	require.NoError(t, err)
	app := handlerApp(svc, ownerID)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodDelete, "/wallet", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/wallet", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "0.005", body["main_balance"])
}
