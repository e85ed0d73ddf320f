// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors of the HTTP API.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec

	Clusters            prometheus.Gauge
	LocatedComplaints   prometheus.Gauge
	UnlocatedComplaints prometheus.Gauge
}

// NewMetrics registers the API metrics against reg, defaulting to the global
// registry when nil. Registering twice returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicmap_http_requests_total",
		Help: "Handled API requests, labeled by route, method and status code.",
	}, []string{"route", "method", "code"}))
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicmap_http_request_duration_seconds",
		Help:    "API latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"}))
	if err != nil {
		return nil, err
	}

	clusters, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "civicmap_hotspot_clusters",
		Help: "Number of clusters in the last computed heat map.",
	}))
	if err != nil {
		return nil, err
	}

	located, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "civicmap_located_complaints",
		Help: "Complaints inside the region in the last computed heat map.",
	}))
	if err != nil {
		return nil, err
	}

	unlocated, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "civicmap_unlocated_complaints",
		Help: "Complaints without coordinates in the last computed heat map.",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:            gatherer,
		Requests:            requests,
		Durations:           durations,
		Clusters:            clusters,
		LocatedComplaints:   located,
		UnlocatedComplaints: unlocated,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}

			return c, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}

		return c, err
	}

	return c, nil
}

// Middleware records request counts and durations per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.Requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.Durations.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveSnapshot updates the heat map gauges.
func (m *Metrics) ObserveSnapshot(clusters, located, unlocated int) {
	m.Clusters.Set(float64(clusters))
	m.LocatedComplaints.Set(float64(located))
	m.UnlocatedComplaints.Set(float64(unlocated))
}

// Handler exposes the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
