// Package metrics holds the Prometheus instruments and the KV-persisted
// request recorder used across the edge service.  All collectors are
// registered with the global registry, so importing this package in
// main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_requests_total",
			Help: "Classified requests, labeled by outcome (personalized, passthrough, degraded).",
		}, []string{"outcome"})

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_hits_total",
			Help: "Query-result cache hits and misses.",
		}, []string{"result"})

	OriginFetchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edge_origin_fetch_seconds",
			Help:    "Origin fetch latency.",
			Buckets: prometheus.DefBuckets,
		})

	FallbackServedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_fallback_served_total",
			Help: "Responses served with the hardcoded broker fallback set.",
		})

	PageWriteDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_page_write_drops_total",
			Help: "Page cache writes dropped on background queue overflow.",
		})

	WarmPairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_warm_pairs_total",
			Help: "Cache warmer country×route outcomes.",
		}, []string{"result"})

	DeviceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_device_requests_total",
			Help: "Personalized requests by client device class.",
		}, []string{"device"})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		CacheHitsTotal,
		OriginFetchSeconds,
		FallbackServedTotal,
		PageWriteDropsTotal,
		WarmPairsTotal,
		DeviceRequestsTotal,
	)
}
