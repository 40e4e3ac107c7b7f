package observability

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestCorrelation tags every request with a correlation id, taken from the
// X-Request-ID header or freshly generated, and threads it through the user
// context so downstream logs and alerts carry it.
func RequestCorrelation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.Set(fiber.HeaderXRequestID, correlationID)
		c.SetUserContext(WithCorrelationID(c.UserContext(), correlationID))

		return c.Next()
	}
}
