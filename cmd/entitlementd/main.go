package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/entitlement-sync/app/controllers"
	"github.com/ManuelReschke/entitlement-sync/app/repository"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/billing"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/cache"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/config"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/database"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/env"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/jobqueue"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/metrics"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/router"
)

func main() {
	vals, err := env.Load()
	if err != nil && !errors.Is(err, env.ErrNoEnvFile) {
		log.Fatalf("[Startup] Reading .env failed: %v", err)
	}
	if errors.Is(err, env.ErrNoEnvFile) {
		log.Info("[Startup] No .env file found, using process environment")
	}

	cfg, err := config.Load(vals)
	if err != nil {
		log.Fatalf("[Startup] %v", err)
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatalf("[Startup] Database unavailable: %v", err)
	}
	defer database.Close(db)

	ctx := context.Background()
	cacheClient, cacheErr := cache.NewClient(ctx, cfg.Cache)
	defer cacheClient.Close()

	app, queue := NewApplication(cfg, db, cacheClient, cacheErr == nil)
	if queue != nil {
		queue.Start()
	}

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.Fatalf("[Startup] Listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("[Shutdown] Stopping HTTP server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("[Shutdown] %v", err)
	}
	if queue != nil {
		queue.Stop()
	}
}

// NewApplication builds the fiber app and every collaborator it serves. The
// reverify queue is nil when the cache is unreachable; the caller starts it.
func NewApplication(cfg config.Config, db *gorm.DB, cacheClient *goredis.Client, cacheReachable bool) (*fiber.App, *jobqueue.Queue) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	accounts := repository.NewAccountRepository(db)
	source := billing.NewRevenueCatClient(billing.RevenueCatConfig{
		APIKey:         cfg.RevenueCat.APIKey,
		APIBaseURL:     cfg.RevenueCat.APIBaseURL,
		RequestTimeout: cfg.RevenueCat.RequestTimeout,
		MaxRetries:     uint64(cfg.RevenueCat.MaxRetries),
		RatePerSecond:  cfg.RevenueCat.RatePerSecond,
		Burst:          cfg.RevenueCat.Burst,
	})
	verifier := billing.NewVerifier(accounts, source, billing.VerifierConfig{
		FreshnessWindow: cfg.Billing.FreshnessWindow,
		FetchTimeout:    cfg.Billing.FetchTimeout,
	}, rec)
	registrar := billing.NewRegistrar(accounts, rec)
	processor := billing.NewWebhookProcessor(accounts, rec)

	subscriptions := controllers.NewSubscriptionController(verifier, registrar, cfg.Billing.FetchTimeout+5*time.Second)

	var guard billing.DeliveryGuard
	var limiterStorage fiber.Storage
	var queue *jobqueue.Queue
	if cacheReachable {
		guard = billing.NewRedisDeliveryGuard(cacheClient, cfg.Webhook.DeliveryTTL)
		limiterStorage = cache.NewLimiterStorage(cfg.Cache)
		queue = jobqueue.NewQueue(cacheClient, cfg.ReverifyWorkers)
		queue.Handle(jobqueue.JobTypeReverifyAccount, jobqueue.ReverifyHandler(verifier))
		reg.MustRegister(queue.Collector())
		subscriptions.WithReverify(queue)
	} else {
		log.Warn("[Startup] Cache unreachable: webhook dedupe and reverify disabled, rate limits are per instance")
	}

	app := fiber.New(fiber.Config{
		AppName:   "entitlement-sync",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), requestid.New(), logger.New())

	health := controllers.NewHealthController(map[string]controllers.HealthCheck{
		"db": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"cache": func(ctx context.Context) error {
			return cacheClient.Ping(ctx).Err()
		},
	})

	// ROUTER
	router.InstallRouter(app,
		router.NewOpsRouter(health, router.OpsConfig{
			Gatherer:    reg,
			MetricsUser: cfg.MetricsUser,
			MetricsPass: cfg.MetricsPass,
			OpenAPIFile: findOpenAPIFile(),
		}),
		router.NewWebhookRouter(
			controllers.NewWebhookController(processor, guard, 15*time.Second),
			cfg.Webhook.AuthToken,
		),
		router.NewApiRouter(
			subscriptions,
			controllers.NewAccountController(accounts),
			cfg.AccountHeader,
			cfg.RateLimit,
			limiterStorage,
		),
	)

	return app, queue
}

func findOpenAPIFile() string {
	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/entitlementd to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		file := path + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(file); err == nil {
			return file
		}
	}
	return ""
}
