package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP returns the caller's IP, preferring the first X-Forwarded-For hop
// (the app runs behind a proxy in production).
func ClientIP(c *fiber.Ctx) string {
	if fwd := c.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}
	return c.IP()
}

// ClientUserAgent returns the request User-Agent header.
func ClientUserAgent(c *fiber.Ctx) string {
	return c.Get("User-Agent")
}
