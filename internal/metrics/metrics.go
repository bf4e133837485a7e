// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	evaluationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propdesk_evaluations_total",
		Help: "account evaluations by outcome",
	}, []string{"outcome"})

	evaluationRetriesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propdesk_evaluation_retries_total",
		Help: "evaluations restarted after a version conflict",
	})

	evaluationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "propdesk_evaluation_duration_seconds",
		Help:    "wall time of one account evaluation including retries",
		Buckets: prometheus.DefBuckets,
	})

	violationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propdesk_violations_total",
		Help: "violations recorded by type",
	}, []string{"type"})

	transitionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propdesk_transitions_total",
		Help: "lifecycle transitions by source and target state",
	}, []string{"from", "to"})

	staleMarksCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propdesk_stale_marks_total",
		Help: "open positions valued with a fallback price",
	})

	priceLookupsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propdesk_price_lookups_total",
		Help: "market data lookups by result",
	}, []string{"result"})

	payoutsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propdesk_payouts_total",
		Help: "payout requests by resulting status",
	}, []string{"status"})

	sweepAccountsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "propdesk_sweep_accounts",
		Help: "accounts visited by the latest sweep",
	})

	sweepFailuresGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "propdesk_sweep_failures",
		Help: "accounts that failed to evaluate in the latest sweep",
	})

	sweepLatencyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "propdesk_sweep_duration_ms",
		Help: "duration of the latest sweep",
	})
)

func init() {
	prometheus.MustRegister(
		evaluationsCounter,
		evaluationRetriesCounter,
		evaluationLatency,
		violationsCounter,
		transitionsCounter,
		staleMarksCounter,
		priceLookupsCounter,
		payoutsCounter,
		sweepAccountsGauge,
		sweepFailuresGauge,
		sweepLatencyGauge,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func IncEvaluation(outcome string) {
	evaluationsCounter.WithLabelValues(outcome).Inc()
}

func IncEvaluationRetry() {
	evaluationRetriesCounter.Inc()
}

func ObserveEvaluationLatency(d time.Duration) {
	evaluationLatency.Observe(d.Seconds())
}

func IncViolation(typ string) {
	violationsCounter.WithLabelValues(typ).Inc()
}

func IncTransition(from, to string) {
	transitionsCounter.WithLabelValues(from, to).Inc()
}

func AddStaleMarks(n int) {
	if n > 0 {
		staleMarksCounter.Add(float64(n))
	}
}

func IncPriceLookup(ok bool) {
	if ok {
		priceLookupsCounter.WithLabelValues("ok").Inc()
		return
	}
	priceLookupsCounter.WithLabelValues("fallback").Inc()
}

func IncPayout(status string) {
	payoutsCounter.WithLabelValues(status).Inc()
}

func ObserveSweep(accounts, failures int, d time.Duration) {
	sweepAccountsGauge.Set(float64(accounts))
	sweepFailuresGauge.Set(float64(failures))
	sweepLatencyGauge.Set(d.Seconds() * 1000)
}
