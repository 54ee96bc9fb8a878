package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

type revenueCatWebhookEnvelope struct {
	APIVersion string                 `json:"api_version"`
	Event      *revenueCatWebhookBody `json:"event"`
}

type revenueCatWebhookBody struct {
	ID                string   `json:"id"`
	Type              string   `json:"type"`
	AppUserID         string   `json:"app_user_id"`
	OriginalAppUserID string   `json:"original_app_user_id"`
	Aliases           []string `json:"aliases"`
	ProductID         string   `json:"product_id"`
	NewProductID      string   `json:"new_product_id"`
	ExpirationAtMs    *int64   `json:"expiration_at_ms"`
	PurchasedAtMs     *int64   `json:"purchased_at_ms"`
	EventTimestampMs  *int64   `json:"event_timestamp_ms"`
	TransactionID     string   `json:"transaction_id"`
	Price             *float64 `json:"price"`
	Currency          string   `json:"currency"`
	PeriodType        string   `json:"period_type"`
	Store             string   `json:"store"`
	Environment       string   `json:"environment"`
}

// ParseRevenueCatWebhook normalizes a RevenueCat webhook delivery body.
func ParseRevenueCatWebhook(payload []byte) (WebhookEvent, error) {
	var env revenueCatWebhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return WebhookEvent{}, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if env.Event == nil {
		return WebhookEvent{}, errors.Join(ErrInvalidWebhookPayload, errors.New("missing event object"))
	}
	raw := env.Event
	if strings.TrimSpace(raw.Type) == "" {
		return WebhookEvent{}, errors.Join(ErrInvalidWebhookPayload, errors.New("missing event type"))
	}

	kind := NormalizeEventKind(raw.Type)
	productID := strings.TrimSpace(raw.ProductID)
	// A product change event names the product being switched to separately.
	if kind == EventProductChange && strings.TrimSpace(raw.NewProductID) != "" {
		productID = strings.TrimSpace(raw.NewProductID)
	}

	primary := strings.TrimSpace(raw.AppUserID)
	if primary == "" {
		primary = strings.TrimSpace(raw.OriginalAppUserID)
	}
	aliases := append([]string{}, raw.Aliases...)
	if orig := strings.TrimSpace(raw.OriginalAppUserID); orig != "" && orig != primary {
		aliases = append(aliases, orig)
	}

	return WebhookEvent{
		ID:             strings.TrimSpace(raw.ID),
		Kind:           kind,
		ExternalID:     primary,
		Aliases:        aliases,
		ProductID:      productID,
		ExpirationAt:   msToTime(raw.ExpirationAtMs),
		PurchasedAt:    msToTime(raw.PurchasedAtMs),
		TransactionID:  strings.TrimSpace(raw.TransactionID),
		Price:          raw.Price,
		Currency:       strings.TrimSpace(raw.Currency),
		PeriodType:     strings.TrimSpace(raw.PeriodType),
		Store:          strings.TrimSpace(raw.Store),
		Environment:    strings.TrimSpace(raw.Environment),
		EventTimestamp: msToTime(raw.EventTimestampMs),
	}, nil
}

func msToTime(ms *int64) *time.Time {
	if ms == nil || *ms <= 0 {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
