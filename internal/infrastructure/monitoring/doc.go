/*
Package monitoring provides Prometheus metrics for shell sessions.

# Overview

Metrics cover submitted commands (by mode and outcome), session spawns and
resets, the PTY spawn breaker, background processes and the optional debug
HTTP server. All recording methods accept a nil receiver so components can
run without metrics.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	timer := monitoring.NewTimer(metrics, "agentic")
	// ... run command ...
	timer.Stop("completed")

# Metrics Endpoint

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
