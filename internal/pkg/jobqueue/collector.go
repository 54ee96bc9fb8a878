package jobqueue

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pendingDesc = prometheus.NewDesc(
		"entitlement_reverify_queue_pending", "Reverify jobs waiting for a worker.", nil, nil)
	processingDesc = prometheus.NewDesc(
		"entitlement_reverify_queue_processing", "Reverify jobs held by a worker.", nil, nil)
	jobsDesc = prometheus.NewDesc(
		"entitlement_reverify_jobs_total", "Reverify jobs by terminal or initial status.", []string{"status"}, nil)
)

// Collector exports queue depth and job stats on each scrape.
func (q *Queue) Collector() prometheus.Collector {
	return queueCollector{q: q, timeout: 2 * time.Second}
}

type queueCollector struct {
	q       *Queue
	timeout time.Duration
}

func (c queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pendingDesc
	ch <- processingDesc
	ch <- jobsDesc
}

func (c queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if n, err := c.q.GetQueueSize(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(pendingDesc, prometheus.GaugeValue, float64(n))
	} else {
		log.Warnf("[JobQueue] Metrics: queue size: %v", err)
	}
	if n, err := c.q.GetProcessingSize(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(processingDesc, prometheus.GaugeValue, float64(n))
	} else {
		log.Warnf("[JobQueue] Metrics: processing size: %v", err)
	}

	stats, err := c.q.GetJobStats(ctx)
	if err != nil {
		log.Warnf("[JobQueue] Metrics: job stats: %v", err)
		return
	}
	for status, n := range stats {
		ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.CounterValue, float64(n), string(status))
	}
}
