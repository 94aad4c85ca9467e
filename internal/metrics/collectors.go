package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RuntimeCollector reports values read on scrape rather than recorded on events
type RuntimeCollector struct {
	keyAge  func() time.Duration
	costUSD func() float64

	apiKeyAge     *prometheus.Desc
	estimatedCost *prometheus.Desc
}

// NewRuntimeCollector creates a collector; either source may be nil
func NewRuntimeCollector(keyAge func() time.Duration, costUSD func() float64) *RuntimeCollector {
	return &RuntimeCollector{
		keyAge:  keyAge,
		costUSD: costUSD,

		apiKeyAge: prometheus.NewDesc(
			"codeagents_api_key_age_seconds",
			"Seconds since the provider API key was loaded",
			nil, nil,
		),
		estimatedCost: prometheus.NewDesc(
			"codeagents_estimated_cost_usd",
			"Estimated provider spend since startup",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.apiKeyAge
	ch <- c.estimatedCost
}

// Collect implements prometheus.Collector
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	if c.keyAge != nil {
		ch <- prometheus.MustNewConstMetric(c.apiKeyAge, prometheus.GaugeValue, c.keyAge().Seconds())
	}
	if c.costUSD != nil {
		ch <- prometheus.MustNewConstMetric(c.estimatedCost, prometheus.CounterValue, c.costUSD())
	}
}
