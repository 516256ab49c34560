package circuitbreaker

import (
	"github.com/vyrodovalexey/loangw/internal/observability"
)

// MetricsObserver exports transitions to the circuit_breaker_* metrics.
func MetricsObserver(m *observability.Metrics) Observer {
	return func(t Transition) {
		m.RecordBreakerTransition(t.Service, t.To.String(), t.To.GaugeValue())
	}
}

// LogObserver logs transitions. Opening is logged at warn level.
func LogObserver(logger observability.Logger) Observer {
	return func(t Transition) {
		fields := []observability.Field{
			observability.String("service", t.Service),
			observability.String("from", t.From.String()),
			observability.String("to", t.To.String()),
		}
		if t.To == StateOpen {
			logger.Warn("circuit breaker opened", fields...)
			return
		}
		logger.Info("circuit breaker state changed", fields...)
	}
}
