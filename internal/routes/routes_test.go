package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devclassik/harmoney-backend-sub000/internal/config"
	"github.com/devclassik/harmoney-backend-sub000/internal/gateway"
	"github.com/devclassik/harmoney-backend-sub000/internal/logging"
	"github.com/devclassik/harmoney-backend-sub000/internal/middleware"
)

const (
	testJWTSecret     = "routes-test-secret"
	testWebhookSecret = "routes-webhook-secret"
)

type harness struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Config{
		AppEnv:            "test",
		JWTSecret:         testJWTSecret,
		WebhookSecret:     testWebhookSecret,
		IdempotencyTTL:    time.Minute,
		PurchaseRateLimit: 10,
		Gateway:           config.GatewayConfig{Timeout: time.Second},
		Wallet:            config.WalletConfig{Currency: "NGN", BankCode: "090286", BankName: "Safe Haven MFB"},
	}
	deps := Deps{Cfg: cfg, Logger: logging.Discard(), Gateway: gateway.NewSandbox()}
	svc, err := NewServices(deps)
	require.NoError(t, err)

	app := fiber.New()
	require.NoError(t, Setup(app, deps, svc))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	return &harness{t: t, app: app, token: token}
}

func (h *harness) do(method, path string, body any, headers map[string]string) (int, map[string]any) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (h *harness) authed(method, path string, body any) (int, map[string]any) {
	return h.do(method, path, body, map[string]string{fiber.HeaderAuthorization: "Bearer " + h.token})
}

func (h *harness) webhook(payload map[string]any) (int, map[string]any) {
	raw, err := json.Marshal(payload)
	require.NoError(h.t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/gateway", bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Webhook-Signature", middleware.SignWebhook(testWebhookSecret, raw))
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestWalletLifecycle(t *testing.T) {
	h := newHarness(t)

	status, body := h.authed(fiber.MethodPost, "/api/v1/users", map[string]any{
		"email": "ada@example.com", "first_name": "Ada", "last_name": "Obi", "phone": "08030000000",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	w := body["wallet"].(map[string]any)
	accountNumber := w["account_number"].(string)
	walletID := w["id"].(string)
	assert.Equal(t, "0.00", w["main_balance"])

	status, _ = h.authed(fiber.MethodPut, "/api/v1/users/me/pin", map[string]any{"pin": "1234"})
	require.Equal(t, fiber.StatusNoContent, status)

	transfer := map[string]any{
		"type": "transfer",
		"data": map[string]any{
			"_id":                        "prov-1",
			"creditAccountNumber":        accountNumber,
			"destinationInstitutionCode": "090286",
			"amount":                     1000,
			"debitAccountName":           "Chidi Eze",
		},
	}
	status, body = h.webhook(transfer)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "applied", body["status"])

	status, body = h.webhook(transfer)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "duplicate", body["status"])

	status, body = h.authed(fiber.MethodPost, "/api/v1/purchases/airtime", map[string]any{
		"amount": "400", "pin": "1234", "fields": map[string]string{"phone": "08030000000"},
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "SUCCESSFUL", body["status"])
	assert.Equal(t, "600.00", body["current_wallet_balance"])

	status, body = h.authed(fiber.MethodGet, "/api/v1/wallet", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "600.00", body["main_balance"])
	assert.Equal(t, "600.00", body["book_balance"])

	status, body = h.authed(fiber.MethodGet, "/api/v1/wallets/"+walletID+"/balance", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "600.00", body["book_balance"])

	status, body = h.authed(fiber.MethodGet, "/api/v1/transactions", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])

	status, body = h.authed(fiber.MethodGet, "/api/v1/transactions?type=DEBIT", nil)
	require.Equal(t, fiber.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	ref := items[0].(map[string]any)["reference"].(string)

	status, body = h.authed(fiber.MethodGet, "/api/v1/transactions/"+ref, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "airtime", body["category"])
}

func TestPurchaseRejections(t *testing.T) {
	h := newHarness(t)
	status, _ := h.authed(fiber.MethodPost, "/api/v1/users", map[string]any{"email": "bola@example.com"})
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = h.authed(fiber.MethodPost, "/api/v1/purchases/airtime", map[string]any{"amount": "100", "pin": "1234"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = h.authed(fiber.MethodPut, "/api/v1/users/me/pin", map[string]any{"pin": "1234"})
	require.Equal(t, fiber.StatusNoContent, status)

	status, _ = h.authed(fiber.MethodPost, "/api/v1/purchases/airtime", map[string]any{"amount": "100", "pin": "1234"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.authed(fiber.MethodPost, "/api/v1/purchases/lottery", map[string]any{"amount": "100", "pin": "1234"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := h.authed(fiber.MethodGet, "/api/v1/transactions", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/v1/wallet", "/api/v1/users/me", "/api/v1/transactions"} {
		status, _ := h.do(fiber.MethodGet, path, nil, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, path)
	}
}

func TestWebhookRejectsUnsignedAndUnknownAccounts(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(fiber.MethodPost, "/webhooks/gateway", map[string]any{"type": "transfer"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = h.webhook(map[string]any{
		"type": "transfer",
		"data": map[string]any{"_id": "prov-9", "creditAccountNumber": "0000000000", "destinationInstitutionCode": "090286", "amount": 50},
	})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHealthAndLookup(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(fiber.MethodGet, "/healthz", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "disabled", body["status"].(map[string]any)["postgres"])

	status, body = h.authed(fiber.MethodGet, "/api/v1/banks/lookup?account_number=0123456789&bank_code=058", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Sandbox Account 6789", body["account_name"])

	status, _ = h.authed(fiber.MethodGet, "/api/v1/banks/lookup?account_number=12&bank_code=058", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
