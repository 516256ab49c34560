// Package observability provides logging, metrics, and tracing for the
// gateway.
//
// # Logging
//
// Logger is a thin interface over zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer func() { _ = logger.Sync() }()
//
// # Metrics
//
// Metrics owns a private Prometheus registry exposing request counters and
// durations, circuit breaker transitions, rate limit rejections, forward
// outcomes and backend health:
//
//	metrics := observability.NewMetrics()
//	mux.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// Tracer wraps an OpenTelemetry provider with an OTLP gRPC exporter. When
// disabled it is a no-op.
package observability
