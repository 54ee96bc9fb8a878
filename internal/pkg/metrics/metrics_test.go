package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Verify(PathCache)
	r.Verify(PathCache)
	r.Verify(PathRefresh)
	r.Webhook("renewal", "applied")
	r.Bind("conflict")
	r.VendorFetch(time.Now(), errors.New("boom"))
	r.WebhookLag(3 * time.Second)
	r.WebhookLag(-time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.verifyTotal.WithLabelValues(PathCache)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.verifyTotal.WithLabelValues(PathRefresh)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.webhookTotal.WithLabelValues("renewal", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.bindTotal.WithLabelValues("conflict")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.vendorLatency))

	expected := `
# HELP entitlement_webhook_delivery_lag_seconds Time between the vendor event and its ingestion.
# TYPE entitlement_webhook_delivery_lag_seconds histogram
entitlement_webhook_delivery_lag_seconds_bucket{le="1"} 1
entitlement_webhook_delivery_lag_seconds_bucket{le="5"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="15"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="60"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="300"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="900"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="3600"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="21600"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="86400"} 2
entitlement_webhook_delivery_lag_seconds_bucket{le="+Inf"} 2
entitlement_webhook_delivery_lag_seconds_sum 3
entitlement_webhook_delivery_lag_seconds_count 2
`
	assert.NoError(t, testutil.CollectAndCompare(r.webhookLag, strings.NewReader(expected)))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Verify(PathError)
		r.Webhook("x", "y")
		r.Bind("ok")
		r.VendorFetch(time.Now(), nil)
		r.WebhookLag(time.Second)
	})
}
