package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ManuelReschke/entitlement-sync/internal/pkg/usercontext"
)

// AccountHeaderMiddleware trusts the account id header set by the
// authenticating proxy and rejects requests without one.
func AccountHeaderMiddleware(header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID := strings.TrimSpace(c.Get(header))
		if accountID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing account id"})
		}
		if _, err := uuid.Parse(accountID); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Malformed account id"})
		}

		usercontext.SetAccountContext(c, usercontext.AccountContext{
			AccountID: accountID,
			RequestID: requestID(c),
		})
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	if id := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); id != "" {
		return id
	}
	return uuid.NewString()
}
