package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	probeOK       = "ok"
	probeDisabled = "disabled"
)

// RegisterHealthRoutes adds the liveness endpoint. Backends that are not configured
// report "disabled" and do not fail the check.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		postgres := probeDisabled
		if d.DB != nil {
			postgres = probe(d.DB.Ping(ctx))
		}
		cache := probeDisabled
		if d.Cache != nil {
			cache = probe(d.Cache.Ping(ctx).Err())
		}

		status := http.StatusOK
		for _, s := range []string{postgres, cache} {
			if s != probeOK && s != probeDisabled {
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": postgres, "redis": cache},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func probe(err error) string {
	if err != nil {
		return err.Error()
	}
	return probeOK
}
