package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subscriberFixture = `{
  "subscriber": {
    "original_app_user_id": "rc123",
    "aliases": ["rc123", "$RCAnonymousID:abc"],
    "entitlements": {
      "pro": {
        "expires_date": "2025-07-01T00:00:00Z",
        "product_identifier": "monthly_plan",
        "purchase_date": "2025-06-01T00:00:00Z"
      },
      "legacy": {
        "expires_date": null,
        "product_identifier": "lifetime_unlock",
        "purchase_date": "2024-01-01T00:00:00Z"
      }
    },
    "subscriptions": {
      "monthly_plan": {
        "expires_date": "2025-07-01T00:00:00Z",
        "purchase_date": "2025-06-01T00:00:00Z",
        "original_purchase_date": "2025-01-01T00:00:00Z",
        "period_type": "normal",
        "store": "app_store",
        "is_sandbox": true,
        "unsubscribe_detected_at": "2025-06-10T00:00:00Z",
        "billing_issues_detected_at": null
      }
    }
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *RevenueCatClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewRevenueCatClient(RevenueCatConfig{
		APIKey:         "sk_test",
		APIBaseURL:     srv.URL + "/",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
	})
	c.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestParseRevenueCatSubscriber(t *testing.T) {
	sub, err := ParseRevenueCatSubscriber([]byte(subscriberFixture))
	require.NoError(t, err)

	assert.Equal(t, "rc123", sub.OriginalID)
	assert.Equal(t, []string{"rc123", "$RCAnonymousID:abc"}, sub.Aliases)
	require.Len(t, sub.Entitlements, 2)

	legacy := sub.Entitlements[0]
	assert.Equal(t, "legacy", legacy.Identifier)
	assert.Nil(t, legacy.ExpiresAt)
	assert.True(t, legacy.WillRenew)

	pro := sub.Entitlements[1]
	assert.Equal(t, "pro", pro.Identifier)
	assert.Equal(t, "monthly_plan", pro.ProductID)
	require.NotNil(t, pro.ExpiresAt)
	assert.True(t, pro.ExpiresAt.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "normal", pro.PeriodType)
	assert.Equal(t, "app_store", pro.Store)
	assert.True(t, pro.IsSandbox)
	assert.True(t, pro.IsCanceled)
	assert.False(t, pro.WillRenew)
	require.NotNil(t, pro.OriginalPurchaseDate)
}

func TestParseRevenueCatSubscriber_InvalidJSON(t *testing.T) {
	_, err := ParseRevenueCatSubscriber([]byte("{"))
	assert.Error(t, err)
}

func TestRevenueCatClient_Fetch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscribers/rc123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(subscriberFixture))
	})

	sub, err := c.Fetch(context.Background(), "rc123")
	require.NoError(t, err)
	assert.Equal(t, "rc123", sub.OriginalID)
	assert.Len(t, sub.Entitlements, 2)
}

func TestRevenueCatClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(subscriberFixture))
	})

	sub, err := c.Fetch(context.Background(), "rc123")
	require.NoError(t, err)
	assert.NotNil(t, sub)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRevenueCatClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Fetch(context.Background(), "rc123")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRevenueCatClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Fetch(context.Background(), "rc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRevenueCatClient_RequiresConfiguration(t *testing.T) {
	c := NewRevenueCatClient(RevenueCatConfig{})
	assert.Equal(t, defaultRevenueCatAPIBaseURL, c.APIBaseURL)

	_, err := c.Fetch(context.Background(), "rc123")
	assert.Error(t, err)

	c.APIKey = "sk_test"
	_, err = c.Fetch(context.Background(), " ")
	assert.Error(t, err)
}

func TestRevenueCatClient_HonorsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "rc123")
	assert.Error(t, err)
}
