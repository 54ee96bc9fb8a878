package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/entitlement-sync/app/controllers"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/middleware"
)

type WebhookRouter struct {
	webhooks  *controllers.WebhookController
	authToken string
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	hooks := app.Group("/webhooks", middleware.WebhookAuthMiddleware(h.authToken))
	hooks.Post("/revenuecat", h.webhooks.HandleRevenueCatWebhook)
}

func NewWebhookRouter(webhooks *controllers.WebhookController, authToken string) *WebhookRouter {
	return &WebhookRouter{webhooks: webhooks, authToken: authToken}
}
