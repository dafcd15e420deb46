package middleware

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const webhookSignatureHeader = "X-Webhook-Signature"

// WebhookSignature rejects rail callbacks whose body does not carry a valid
// HMAC-SHA512 hex signature. An empty secret disables the check.
func WebhookSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		got, err := hex.DecodeString(strings.TrimSpace(c.Get(webhookSignatureHeader)))
		if err != nil || len(got) == 0 {
			return fiber.NewError(http.StatusUnauthorized, "missing webhook signature")
		}
		mac := hmac.New(sha512.New, []byte(secret))
		mac.Write(c.Body())
		if !hmac.Equal(got, mac.Sum(nil)) {
			return fiber.NewError(http.StatusUnauthorized, "invalid webhook signature")
		}
		return c.Next()
	}
}

// SignWebhook computes the signature header value for body.
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
