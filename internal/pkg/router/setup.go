package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers the operational routes first so health and metrics
// stay outside the API rate limiter.
func InstallRouter(app *fiber.App, ops *OpsRouter, webhooks *WebhookRouter, api *ApiRouter) {
	setup(app, ops, webhooks, api)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
