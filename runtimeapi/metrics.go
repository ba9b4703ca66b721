package runtimeapi

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// RequestsMetricName is the counter every dispatched request is recorded under.
	RequestsMetricName = "parachain_runtime_api_requests_total"

	// SuccessLabel is the label distinguishing the two outcomes.
	SuccessLabel = "success"

	LabelSucceeded = "succeeded"
	LabelFailed    = "failed"
)

// Metrics records the outcome of every dispatched request.
type Metrics interface {
	// OnRequest increments the succeeded or the failed counter.
	OnRequest(succeeded bool)
}

type prometheusMetrics struct {
	requests *prometheus.CounterVec
}

// RegisterMetrics creates the request counter and registers it with reg.
func RegisterMetrics(reg prometheus.Registerer) (Metrics, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: RequestsMetricName,
			Help: "Number of Runtime API requests served.",
		},
		[]string{SuccessLabel},
	)

	if err := reg.Register(requests); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", RequestsMetricName, err)
	}

	// both series are exported from the start, at zero
	requests.WithLabelValues(LabelSucceeded)
	requests.WithLabelValues(LabelFailed)

	return &prometheusMetrics{requests: requests}, nil
}

func (m *prometheusMetrics) OnRequest(succeeded bool) {
	if succeeded {
		m.requests.WithLabelValues(LabelSucceeded).Inc()
	} else {
		m.requests.WithLabelValues(LabelFailed).Inc()
	}
}

type noopMetrics struct{}

// NoopMetrics returns a recorder that does nothing, for when metrics are disabled.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) OnRequest(bool) {}
