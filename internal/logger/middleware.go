package logger

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"
)

// APILogger returns a fiber middleware that logs every HTTP request
func APILogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		stop := time.Now()
		InfoWithFields("Request", Fields{
			"status":  c.Response().StatusCode(),
			"latency": stop.Sub(start).String(),
			"ip":      c.IP(),
			"method":  c.Method(),
			"path":    c.Path(),
			"handler": c.Route().Name,
		})

		return err
	}
}
