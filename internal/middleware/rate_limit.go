package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/devclassik/harmoney-backend-sub000/internal/infra"
	"github.com/devclassik/harmoney-backend-sub000/internal/metrics"
)

// PurchaseRateLimit caps purchases per authenticated user per minute using a Redis
// counter. It fails open when Redis is unavailable.
func PurchaseRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			uid = c.IP()
		}
		key := infra.RedisKeyPrefix + "rl:purchase:" + uid

		// The window TTL is set in the same transaction as the first increment so a
		// counter can never outlive its minute.
		ctx := c.UserContext()
		var incr *redis.IntCmd
		if _, err := cache.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.SetNX(ctx, key, 0, time.Minute)
			incr = p.Incr(ctx, key)
			return nil
		}); err != nil {
			return c.Next()
		}
		cnt := incr.Val()
		if cnt > int64(maxPerMin) {
			metrics.PurchaseRateLimited()
			return fiber.NewError(http.StatusTooManyRequests, "too many purchase attempts, try again later")
		}
		return c.Next()
	}
}
