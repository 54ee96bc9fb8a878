package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/entitlement-sync/internal/pkg/billing"
)

type EventIngester interface {
	Ingest(ctx context.Context, ev billing.WebhookEvent) billing.IngestResult
}

type WebhookController struct {
	ingester EventIngester
	guard    billing.DeliveryGuard
	timeout  time.Duration
}

// NewWebhookController wires the ingress. guard may be nil, in which case
// every delivery is processed.
func NewWebhookController(ingester EventIngester, guard billing.DeliveryGuard, timeout time.Duration) *WebhookController {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookController{ingester: ingester, guard: guard, timeout: timeout}
}

// WebhookResponse is always sent with status 200 so the vendor does not
// redeliver events the service has already seen or cannot use.
type WebhookResponse struct {
	OK        bool                  `json:"ok"`
	Duplicate bool                  `json:"duplicate,omitempty"`
	Result    *billing.IngestResult `json:"result,omitempty"`
}

func (wc *WebhookController) HandleRevenueCatWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	ev, err := billing.ParseRevenueCatWebhook(rawBody)
	if err != nil {
		log.Warnf("[Webhook] Unparseable delivery: %v", err)
		return c.Status(fiber.StatusOK).JSON(WebhookResponse{
			OK:     false,
			Result: &billing.IngestResult{Success: false, Reason: "invalid payload"},
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), wc.timeout)
	defer cancel()

	deliveryID := billing.DeliveryID(ev.ID, rawBody)
	claimed := false
	if wc.guard != nil {
		first, err := wc.guard.Claim(ctx, deliveryID)
		switch {
		case err != nil:
			log.Warnf("[Webhook] Delivery dedupe unavailable, processing %s anyway: %v", deliveryID, err)
		case !first:
			log.Infof("[Webhook] Duplicate delivery %s (%s)", deliveryID, ev.Kind)
			return c.Status(fiber.StatusOK).JSON(WebhookResponse{OK: true, Duplicate: true})
		default:
			claimed = true
		}
	}

	result := wc.ingester.Ingest(ctx, ev)
	if !result.Success && claimed && result.Reason != billing.ReasonAccountNotFound {
		// Let a replay of a delivery that failed on our side be processed again.
		if err := wc.guard.Release(ctx, deliveryID); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("[Webhook] Could not release delivery %s: %v", deliveryID, err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(WebhookResponse{OK: result.Success, Result: &result})
}
