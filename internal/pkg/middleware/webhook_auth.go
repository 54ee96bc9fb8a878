package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/entitlement-sync/internal/pkg/billing"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/usercontext"
)

// WebhookAuthMiddleware checks the Authorization header configured on the
// vendor webhook. An empty token disables the check.
func WebhookAuthMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		if !billing.VerifyWebhookAuthorization(c.Get(fiber.HeaderAuthorization), token) {
			log.Warnf("[Webhook] Rejected delivery from %s: bad authorization", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_authorization"})
		}
		c.Locals(usercontext.KeyWebhookAuthed, true)
		return c.Next()
	}
}
