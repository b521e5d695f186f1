// Package metrics provides the prometheus counters and histograms shared by
// the CRL repository and the trust validator. The pattern (a struct of
// pre-registered Counter/CounterVec/Histogram fields, built once and injected into
// constructors) is grounded on the email package's cache metrics in the
// teacher corpus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every counter and histogram this module emits. Callers
// construct one with New and share it across a Repository and a
// TrustValidator built from the same prometheus.Registerer.
type Metrics struct {
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	SingleflightHits prometheus.Counter
	FetchDuration    prometheus.Histogram
	FetchErrors      *prometheus.CounterVec
	Verdicts         *prometheus.CounterVec
	Abstains         *prometheus.CounterVec
}

// New constructs and registers a Metrics bundle against the given
// Registerer. Passing a fresh prometheus.NewRegistry() is typical in tests;
// production callers typically pass prometheus.DefaultRegisterer.
func New(stats prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkitrust_crl_cache_hits_total",
			Help: "Number of CRL repository lookups satisfied from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkitrust_crl_cache_misses_total",
			Help: "Number of CRL repository lookups that required a fetch.",
		}),
		SingleflightHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkitrust_crl_singleflight_collapsed_total",
			Help: "Number of CRL fetches that were collapsed into an in-flight fetch for the same key.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkitrust_crl_fetch_duration_seconds",
			Help:    "Time to fetch a CRL's raw bytes, excluding parsing.",
			Buckets: prometheus.DefBuckets,
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkitrust_crl_fetch_errors_total",
			Help: "Number of CRL fetch/parse failures, by cause.",
		}, []string{"cause"}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkitrust_verdicts_total",
			Help: "Number of terminal trust verdicts, by verdict and reason.",
		}, []string{"verdict", "reason"}),
		Abstains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkitrust_abstains_total",
			Help: "Number of linker Abstain verdicts, by cause.",
		}, []string{"cause"}),
	}
	stats.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.SingleflightHits,
		m.FetchDuration,
		m.FetchErrors,
		m.Verdicts,
		m.Abstains,
	)
	return m
}

// NoopRegisterer returns a fresh, unconnected registry for tests and callers
// that don't want to export metrics anywhere.
func NoopRegisterer() prometheus.Registerer {
	return prometheus.NewRegistry()
}
