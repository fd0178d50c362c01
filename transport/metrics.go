package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes recorded in the requests counter.
const (
	OutcomeSuccess     = "success"
	OutcomeXMLError    = "xml_error"  // non-2xx status with an XML body
	OutcomeHTTPError   = "http_error" // non-2xx status with any other body
	OutcomeNetworkFail = "network_error"
)

// Metrics holds the Prometheus collectors for SOAP calls. A nil *Metrics
// records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. When reg
// already holds collectors with the same descriptors, for example from
// another Client, those are reused so every caller counts into the same
// series.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "debbugs_soap_requests_total",
		Help: "SOAP calls made to the Debbugs server, by method and outcome",
	}, []string{"method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "debbugs_soap_request_duration_seconds",
		Help:    "Wall time of SOAP calls to the Debbugs server",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method"})

	if err := register(reg, &requests); err != nil {
		return nil, err
	}
	if err := register(reg, &duration); err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, duration: duration}, nil
}

// register adds *c to reg, replacing *c with the collector reg already
// holds when an identical one was registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}

	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("register metrics: %w", err)
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return fmt.Errorf("register metrics: existing collector is %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

func (m *Metrics) observe(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func outcomeOf(resp *Response, err error) string {
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode != 0 {
			return OutcomeHTTPError
		}
		return OutcomeNetworkFail
	}
	if !resp.OK() {
		return OutcomeXMLError
	}
	return OutcomeSuccess
}
