// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(apiRequestLatencyMs) }

var apiRequestLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "weaver_api_request_latency_ms",
		Help:    "Backend REST call latency in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
	[]string{"method", "code"},
)

// ObserveAPIRequest records the latency of one backend call.
// A zero code means the request never got a response.
func ObserveAPIRequest(method string, code int, latencyMs float64) {
	apiRequestLatencyMs.WithLabelValues(norm(method), strconv.Itoa(code)).Observe(latencyMs)
}
