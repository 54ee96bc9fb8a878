package router

import (
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/entitlement-sync/app/controllers"
)

// OpsConfig configures the operational endpoints.
type OpsConfig struct {
	Gatherer    prometheus.Gatherer
	MetricsUser string
	MetricsPass string
	// OpenAPIFile is served under /docs/api when it exists.
	OpenAPIFile string
}

type OpsRouter struct {
	health *controllers.HealthController
	cfg    OpsConfig
}

func (h OpsRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", h.health.HandleHealth)

	var guard []fiber.Handler
	if h.cfg.MetricsUser != "" {
		guard = append(guard, basicauth.New(basicauth.Config{
			Users: map[string]string{h.cfg.MetricsUser: h.cfg.MetricsPass},
		}))
	}
	if h.cfg.Gatherer != nil {
		metrics := adaptor.HTTPHandler(promhttp.HandlerFor(h.cfg.Gatherer, promhttp.HandlerOpts{}))
		app.Get("/metrics", append(guard, metrics)...)
	}
	app.Get("/monitor", append(guard, monitor.New(monitor.Config{Title: "entitlement-sync"}))...)

	// SWAGGER / OPENAPI
	if h.cfg.OpenAPIFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: h.cfg.OpenAPIFile,
			Path:     "v1",
		}))
	}
}

func NewOpsRouter(health *controllers.HealthController, cfg OpsConfig) *OpsRouter {
	return &OpsRouter{health: health, cfg: cfg}
}
