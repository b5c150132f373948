/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the backend
service, tracking HTTP requests, outbound dependency calls, circuit breaker
state, job queue activity, and system metrics.

# Features

- HTTP request metrics (latency, throughput)
- Outbound call metrics (attempts, duration, errors, cache hits)
- Circuit breaker state and rejection counts per target
- Job queue metrics (submissions, durations, failures, per-status depth)
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Feed it from the client and queue via the event sink
	sink := monitoring.NewSink(metrics)

	// Time outbound operations
	timer := monitoring.NewTimer(metrics, "billing", "GET")
	// ... perform operation ...
	timer.Stop("200", false)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
