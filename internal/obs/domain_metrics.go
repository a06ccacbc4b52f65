package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DealSubmissionsTotal counts deal persistence attempts by operation and outcome.
	DealSubmissionsTotal *prometheus.CounterVec
	// LedgerFetchTotal counts vehicle ledger lookups by outcome.
	LedgerFetchTotal *prometheus.CounterVec
	// LedgerFetchLatency records ledger lookup latency in milliseconds.
	LedgerFetchLatency *prometheus.HistogramVec
	// SettlementReportsTotal counts rendered settlement reports by format and source.
	SettlementReportsTotal *prometheus.CounterVec
	// DraftSessionsOpen tracks open deal drafts on this instance.
	DraftSessionsOpen prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		DealSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deal_submissions_total",
			Help:      "Count of deal insert and update outcomes.",
		}, []string{"op", "result"})
		LedgerFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_fetch_total",
			Help:      "Count of vehicle ledger cost lookups by outcome.",
		}, []string{"result"})
		LedgerFetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_fetch_duration_ms",
			Help:      "Latency for vehicle ledger cost lookups in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		SettlementReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_reports_total",
			Help:      "Count of settlement reports served by format and source.",
		}, []string{"format", "source"})
		DraftSessionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deal_drafts_open",
			Help:      "Number of open deal drafts held by this instance.",
		})

		DealSubmissionsTotal = register(reg, DealSubmissionsTotal)
		LedgerFetchTotal = register(reg, LedgerFetchTotal)
		LedgerFetchLatency = register(reg, LedgerFetchLatency)
		SettlementReportsTotal = register(reg, SettlementReportsTotal)
		DraftSessionsOpen = register(reg, DraftSessionsOpen)
	})
}

// CountDealSubmission increments the submission counter when metrics are registered.
func CountDealSubmission(op, result string) {
	if DealSubmissionsTotal != nil {
		DealSubmissionsTotal.WithLabelValues(op, result).Inc()
	}
}

// ObserveLedgerFetch records a ledger lookup outcome when metrics are registered.
func ObserveLedgerFetch(result string, millis float64) {
	if LedgerFetchTotal != nil {
		LedgerFetchTotal.WithLabelValues(result).Inc()
	}
	if LedgerFetchLatency != nil {
		LedgerFetchLatency.WithLabelValues(result).Observe(millis)
	}
}

// CountSettlementReport increments the report counter when metrics are registered.
func CountSettlementReport(format, source string) {
	if SettlementReportsTotal != nil {
		SettlementReportsTotal.WithLabelValues(format, source).Inc()
	}
}

// SetDraftSessions updates the open-draft gauge when metrics are registered.
func SetDraftSessions(n int) {
	if DraftSessionsOpen != nil {
		DraftSessionsOpen.Set(float64(n))
	}
}
