// Package metrics holds the Prometheus collectors for a putscan process.
// Every method is safe on a nil *Registry so components can run without
// instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Chain fetch outcomes
const (
	FetchOK          = "ok"
	FetchUnavailable = "unavailable"
	FetchCached      = "cached"
)

// Registry holds all Prometheus metrics for putscan
type Registry struct {
	reg *prometheus.Registry

	ChainFetches      *prometheus.CounterVec
	ProviderRequests  *prometheus.CounterVec
	AuthHandshakes    *prometheus.CounterVec
	AuthRetries       prometheus.Counter
	ContractsRejected *prometheus.CounterVec
	CandidatesKept    prometheus.Counter
	TickerFailures    *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
	ScanDuration      prometheus.Histogram
}

// New creates a registry with every putscan collector registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ChainFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_chain_fetches_total",
				Help: "Option chain lookups by outcome",
			},
			[]string{"result"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_provider_requests_total",
				Help: "HTTP requests sent to the quote provider by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		),

		AuthHandshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_auth_handshakes_total",
				Help: "Cookie and crumb handshakes by outcome",
			},
			[]string{"result"},
		),

		AuthRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "putscan_auth_retries_total",
				Help: "Chain requests retried after the provider rejected the session",
			},
		),

		ContractsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_contracts_rejected_total",
				Help: "Put contracts dropped while building candidates, by reason",
			},
			[]string{"reason"},
		),

		CandidatesKept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "putscan_candidates_total",
				Help: "Contracts that passed every filter",
			},
		),

		TickerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_ticker_failures_total",
				Help: "Tickers that produced no data, by reason",
			},
			[]string{"reason"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "putscan_circuit_state",
				Help: "Circuit breaker state per provider host (0 closed, 1 half-open, 2 open)",
			},
			[]string{"host"},
		),

		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "putscan_scan_duration_seconds",
				Help:    "Wall time of a complete scan",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
	}

	r.reg.MustRegister(
		r.ChainFetches,
		r.ProviderRequests,
		r.AuthHandshakes,
		r.AuthRetries,
		r.ContractsRejected,
		r.CandidatesKept,
		r.TickerFailures,
		r.BreakerState,
		r.ScanDuration,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// WriteTextfile dumps all metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Gatherer())
}

func (r *Registry) ObserveChainFetch(result string) {
	if r == nil {
		return
	}
	r.ChainFetches.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveProviderRequest(endpoint, status string) {
	if r == nil {
		return
	}
	r.ProviderRequests.WithLabelValues(endpoint, status).Inc()
}

func (r *Registry) ObserveHandshake(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.AuthHandshakes.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveAuthRetry() {
	if r == nil {
		return
	}
	r.AuthRetries.Inc()
}

func (r *Registry) ObserveRejection(reason string) {
	if r == nil {
		return
	}
	r.ContractsRejected.WithLabelValues(reason).Inc()
}

func (r *Registry) ObserveCandidate() {
	if r == nil {
		return
	}
	r.CandidatesKept.Inc()
}

func (r *Registry) ObserveTickerFailure(reason string) {
	if r == nil {
		return
	}
	r.TickerFailures.WithLabelValues(reason).Inc()
}

func (r *Registry) SetBreakerState(host string, state float64) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(host).Set(state)
}

func (r *Registry) ObserveScan(seconds float64) {
	if r == nil {
		return
	}
	r.ScanDuration.Observe(seconds)
}

// Value reads the current value of a counter or gauge. Histograms report
// their sample count.
func Value(m prometheus.Metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return 0
	}
	switch {
	case out.Counter != nil:
		return out.GetCounter().GetValue()
	case out.Gauge != nil:
		return out.GetGauge().GetValue()
	case out.Histogram != nil:
		return float64(out.GetHistogram().GetSampleCount())
	default:
		return 0
	}
}
