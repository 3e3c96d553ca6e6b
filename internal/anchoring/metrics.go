package anchoring

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors the pipeline updates as it
// anchors capsules: a private registry with every collector constructed
// and registered once at construction.
type Metrics struct {
	registry *prometheus.Registry

	anchorsTotal      *prometheus.CounterVec
	anchorFeeSatoshis prometheus.Histogram
	walletUTXOCount   prometheus.Gauge
	verifierRequests  *prometheus.CounterVec
}

// NewMetrics builds and registers every collector the pipeline exports.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{registry: reg}

	m.anchorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leicca_anchors_total",
		Help: "Total audit capsule anchoring attempts by result.",
	}, []string{"result"})

	m.anchorFeeSatoshis = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leicca_anchor_fee_satoshis",
		Help:    "Deterministic fee paid per anchored transaction, in satoshis.",
		Buckets: []float64{50, 100, 200, 400, 800, 1600, 3200},
	})

	m.walletUTXOCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leicca_wallet_utxo_count",
		Help: "Number of spendable UTXOs observed in the wallet's satoshis basket at last sync.",
	})

	m.verifierRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leicca_verifier_requests_total",
		Help: "Total vLEI verifier HTTP operations by operation and outcome.",
	}, []string{"op", "outcome"})

	reg.MustRegister(m.anchorsTotal, m.anchorFeeSatoshis, m.walletUTXOCount, m.verifierRequests)

	return m
}

// Registry exposes the collector registry for an HTTP /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeAnchor(result string, feeSatoshis int64) {
	m.anchorsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		m.anchorFeeSatoshis.Observe(float64(feeSatoshis))
	}
}

func (m *Metrics) setUTXOCount(n int) {
	m.walletUTXOCount.Set(float64(n))
}

// ObserveVerifierRequest counts one finished verifier HTTP operation.
// Exported so the verifier client can report through its Observe hook
// without importing prometheus itself.
func (m *Metrics) ObserveVerifierRequest(op, outcome string) {
	m.verifierRequests.WithLabelValues(op, outcome).Inc()
}
