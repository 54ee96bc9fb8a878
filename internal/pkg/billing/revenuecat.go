package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/time/rate"
)

const defaultRevenueCatAPIBaseURL = "https://api.revenuecat.com/v1"

// RevenueCatConfig configures the vendor REST client.
type RevenueCatConfig struct {
	APIKey         string
	APIBaseURL     string
	RequestTimeout time.Duration
	MaxRetries     uint64
	RatePerSecond  float64
	Burst          int
}

// RevenueCatClient fetches subscriber snapshots from the RevenueCat REST API.
type RevenueCatClient struct {
	APIKey     string
	APIBaseURL string
	MaxRetries uint64

	HTTPClient *http.Client
	limiter    *rate.Limiter
	backoff    func() backoff.BackOff
}

func NewRevenueCatClient(cfg RevenueCatConfig) *RevenueCatClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = defaultRevenueCatAPIBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &RevenueCatClient{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		APIBaseURL: base,
		MaxRetries: cfg.MaxRetries,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("revenuecat subscriber request failed: status=%d body=%s", e.status, e.body)
}

// Fetch loads the subscriber snapshot for externalID. Transport errors, 429 and
// 5xx responses are retried up to MaxRetries times; the caller's context bounds
// the total time spent.
func (c *RevenueCatClient) Fetch(ctx context.Context, externalID string) (*Subscriber, error) {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return nil, errors.New("external id is required")
	}
	if c.APIKey == "" {
		return nil, errors.New("REVENUECAT_API_KEY is not configured")
	}

	var out *Subscriber
	attempt := 0
	op := func() error {
		attempt++
		sub, err := c.fetchOnce(ctx, id)
		if err == nil {
			out = sub
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.status != http.StatusTooManyRequests && se.status < 500 {
			return backoff.Permanent(err)
		}
		if attempt <= int(c.MaxRetries) {
			log.Warnf("[RevenueCat] Fetch for %s failed (attempt %d): %v", id, attempt, err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), c.MaxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RevenueCatClient) fetchOnce(ctx context.Context, id string) (*Subscriber, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := c.APIBaseURL + "/subscribers/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}
	return ParseRevenueCatSubscriber(body)
}

// ParseRevenueCatSubscriber normalizes a GET /subscribers/{id} response body.
func ParseRevenueCatSubscriber(payload []byte) (*Subscriber, error) {
	type rawEntitlement struct {
		ExpiresDate       *time.Time `json:"expires_date"`
		ProductIdentifier string     `json:"product_identifier"`
		PurchaseDate      *time.Time `json:"purchase_date"`
	}
	type rawSubscription struct {
		ExpiresDate             *time.Time `json:"expires_date"`
		PurchaseDate            *time.Time `json:"purchase_date"`
		OriginalPurchaseDate    *time.Time `json:"original_purchase_date"`
		PeriodType              string     `json:"period_type"`
		Store                   string     `json:"store"`
		IsSandbox               bool       `json:"is_sandbox"`
		UnsubscribeDetectedAt   *time.Time `json:"unsubscribe_detected_at"`
		BillingIssuesDetectedAt *time.Time `json:"billing_issues_detected_at"`
	}
	type rawResponse struct {
		Subscriber struct {
			OriginalAppUserID string                     `json:"original_app_user_id"`
			Aliases           []string                   `json:"aliases"`
			Entitlements      map[string]rawEntitlement  `json:"entitlements"`
			Subscriptions     map[string]rawSubscription `json:"subscriptions"`
		} `json:"subscriber"`
	}

	var raw rawResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	out := &Subscriber{
		OriginalID: strings.TrimSpace(raw.Subscriber.OriginalAppUserID),
	}
	seen := make(map[string]struct{})
	for _, a := range append([]string{out.OriginalID}, raw.Subscriber.Aliases...) {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out.Aliases = append(out.Aliases, a)
	}

	names := make([]string, 0, len(raw.Subscriber.Entitlements))
	for name := range raw.Subscriber.Entitlements {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ent := raw.Subscriber.Entitlements[name]
		e := Entitlement{
			Identifier:   name,
			ProductID:    strings.TrimSpace(ent.ProductIdentifier),
			ExpiresAt:    ent.ExpiresDate,
			PurchaseDate: ent.PurchaseDate,
			WillRenew:    true,
		}
		if sub, ok := raw.Subscriber.Subscriptions[e.ProductID]; ok {
			if sub.PurchaseDate != nil {
				e.PurchaseDate = sub.PurchaseDate
			}
			e.OriginalPurchaseDate = sub.OriginalPurchaseDate
			e.PeriodType = sub.PeriodType
			e.Store = sub.Store
			e.IsSandbox = sub.IsSandbox
			e.IsCanceled = sub.UnsubscribeDetectedAt != nil
			e.WillRenew = sub.UnsubscribeDetectedAt == nil && sub.BillingIssuesDetectedAt == nil
		}
		out.Entitlements = append(out.Entitlements, e)
	}
	return out, nil
}
