package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis metrics
	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_analyses_total",
			Help: "Total number of analyses performed",
		},
		[]string{"kind", "status"}, // contract/wallet, success/degraded/invalid/error
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptoguard_analysis_duration_seconds",
			Help:    "Duration of analyses including upstream fetches",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	RiskScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptoguard_risk_scores",
			Help:    "Distribution of contract safety scores and wallet risk scores (0-100)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 65, 70, 75, 80, 85, 90, 95, 100},
		},
		[]string{"kind"},
	)

	Grades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_contract_grades_total",
			Help: "Contract grades assigned",
		},
		[]string{"grade"},
	)

	Findings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_vulnerability_findings_total",
			Help: "Heuristic vulnerability findings by severity band",
		},
		[]string{"severity"},
	)

	FallbacksUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_fallbacks_total",
			Help: "Upstream fetches replaced by a fallback value",
		},
		[]string{"source"}, // source, abi, balance, txlist, tokentx, prices
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_api_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"api", "endpoint", "status"}, // explorer/binance, getsourcecode, success/error
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptoguard_api_request_duration_seconds",
			Help:    "Duration of upstream API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "endpoint"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cryptoguard_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"kind", "result"}, // hit/miss/error
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptoguard_database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"severity", "status"},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptoguard_alerts_suppressed_total",
			Help: "Total number of alerts suppressed due to cooldown",
		},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoguard_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"},
	)
)

// RecordAnalysis records the outcome of one analysis
func RecordAnalysis(kind, status string, duration time.Duration) {
	Analyses.WithLabelValues(kind, status).Inc()
	AnalysisDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordContractScore records a contract's score, grade and findings
func RecordContractScore(score int, grade string, critical, high, medium, low int) {
	RiskScores.WithLabelValues("contract").Observe(float64(score))
	Grades.WithLabelValues(grade).Inc()
	Findings.WithLabelValues("critical").Add(float64(critical))
	Findings.WithLabelValues("high").Add(float64(high))
	Findings.WithLabelValues("medium").Add(float64(medium))
	Findings.WithLabelValues("low").Add(float64(low))
}

// RecordWalletScore records a wallet's risk score
func RecordWalletScore(score int) {
	RiskScores.WithLabelValues("wallet").Observe(float64(score))
}

// RecordFallback records that a fetch was replaced by its fallback
func RecordFallback(source string) {
	FallbacksUsed.WithLabelValues(source).Inc()
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(api, endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequests.WithLabelValues(api, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(api, endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit, miss or error
func RecordCacheLookup(kind, result string) {
	CacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAlert records alert metrics
func RecordAlert(severity string, err error, suppressed bool) {
	if suppressed {
		AlertsSuppressed.Inc()
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	AlertsSent.WithLabelValues(severity, status).Inc()
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
