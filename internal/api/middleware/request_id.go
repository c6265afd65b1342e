package middleware

import "github.com/gofiber/fiber/v2"

// RequestID returns the id assigned by the requestid middleware, or the
// inbound header when that middleware is not installed.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
