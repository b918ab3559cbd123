package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Config controls response hardening. The service emits JSON and a
// websocket stream only, never HTML, so the content security policy denies
// everything except same-origin connections.
type Config struct {
	EnableHSTS bool
	// NoStorePrefixes lists path prefixes whose responses carry medical or
	// legal content and must not be cached by intermediaries.
	NoStorePrefixes []string
}

var defaultNoStore = []string{"/api/v1/query", "/api/v1/answers"}

func Headers(cfg Config) fiber.Handler {
	noStore := cfg.NoStorePrefixes
	if len(noStore) == 0 {
		noStore = defaultNoStore
	}

	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Content-Security-Policy",
			"default-src 'none'; connect-src 'self'; frame-ancestors 'none'; base-uri 'none'")
		c.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		if cfg.EnableHSTS {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		for _, prefix := range noStore {
			if strings.HasPrefix(c.Path(), prefix) {
				c.Set("Cache-Control", "no-store")
				break
			}
		}

		return c.Next()
	}
}
