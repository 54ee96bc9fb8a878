package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/entitlement-sync/app/controllers"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/middleware"
)

type ApiRouter struct {
	subscriptions *controllers.SubscriptionController
	accounts      *controllers.AccountController
	accountHeader string
	limiter       limiter.Config
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(h.limiter))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Post("/accounts", h.accounts.HandleCreateAccount)

	sub := v1.Group("/subscription", middleware.AccountHeaderMiddleware(h.accountHeader))
	sub.Post("/register", h.subscriptions.HandleRegister)
	sub.Get("/verify", h.subscriptions.HandleVerify)
}

// NewApiRouter builds the account-facing API. storage may be nil for the
// in-memory limiter store.
func NewApiRouter(subscriptions *controllers.SubscriptionController, accounts *controllers.AccountController, accountHeader string, perMinute int, storage fiber.Storage) *ApiRouter {
	return &ApiRouter{
		subscriptions: subscriptions,
		accounts:      accounts,
		accountHeader: accountHeader,
		limiter:       limiterConfig(perMinute, storage),
	}
}

func limiterConfig(perMinute int, storage fiber.Storage) limiter.Config {
	cfg := limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		Storage:    storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	}
	if perMinute <= 0 {
		cfg.Next = func(*fiber.Ctx) bool { return true }
	}
	return cfg
}
