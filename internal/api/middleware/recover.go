package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Recover turns a handler panic into a plain 500. A panicking session
// handler must never take the whole relay process down with it.
func Recover(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			attrs := []any{
				slog.Any("panic", r),
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
			}
			if reqID, ok := c.Locals("requestid").(string); ok {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			logger.Error("panic recovered", attrs...)

			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "INTERNAL_ERROR",
					"message": "An unexpected error occurred",
				},
			})
		}()
		return c.Next()
	}
}
