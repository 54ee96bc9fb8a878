package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Verify paths reported by the verifier.
const (
	PathLegacy  = "legacy"
	PathUnbound = "unbound"
	PathCache   = "cache"
	PathRefresh = "refresh"
	PathError   = "error"
)

// Recorder holds the service's Prometheus collectors. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	verifyTotal   *prometheus.CounterVec
	webhookTotal  *prometheus.CounterVec
	bindTotal     *prometheus.CounterVec
	vendorLatency *prometheus.HistogramVec
	webhookLag    prometheus.Histogram
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		verifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitlement",
			Name:      "verify_total",
			Help:      "Subscription status reads by resolution path.",
		}, []string{"path"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitlement",
			Name:      "webhook_events_total",
			Help:      "Vendor webhook events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		bindTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitlement",
			Name:      "bind_total",
			Help:      "Identity bind attempts by outcome.",
		}, []string{"outcome"}),
		vendorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "entitlement",
			Name:      "vendor_fetch_seconds",
			Help:      "Latency of entitlement source fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		webhookLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "entitlement",
			Name:      "webhook_delivery_lag_seconds",
			Help:      "Time between the vendor event and its ingestion.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 21600, 86400},
		}),
	}
	if reg != nil {
		reg.MustRegister(r.verifyTotal, r.webhookTotal, r.bindTotal, r.vendorLatency, r.webhookLag)
	}
	return r
}

func (r *Recorder) Verify(path string) {
	if r == nil {
		return
	}
	r.verifyTotal.WithLabelValues(path).Inc()
}

func (r *Recorder) Webhook(kind, outcome string) {
	if r == nil {
		return
	}
	r.webhookTotal.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) Bind(outcome string) {
	if r == nil {
		return
	}
	r.bindTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) VendorFetch(started time.Time, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.vendorLatency.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

// WebhookLag records how long after the vendor event a delivery arrived.
// Negative lags from clock skew count as zero.
func (r *Recorder) WebhookLag(lag time.Duration) {
	if r == nil {
		return
	}
	if lag < 0 {
		lag = 0
	}
	r.webhookLag.Observe(lag.Seconds())
}
