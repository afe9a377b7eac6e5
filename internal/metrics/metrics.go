package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// AccountStatus tracks how many accounts are in each lifecycle status
	AccountStatus *prometheus.GaugeVec
	// LoginAttemptsTotal counts login attempts by outcome
	LoginAttemptsTotal *prometheus.CounterVec
	// LoginDrivesTotal counts completed login drives by outcome
	LoginDrivesTotal *prometheus.CounterVec
	// KeepAlivesTotal counts keepalive requests by outcome
	KeepAlivesTotal *prometheus.CounterVec
	// PointsTotal tracks the last observed reward points per account
	PointsTotal *prometheus.GaugeVec
	// ReloginsTotal counts token refresh drives by trigger
	ReloginsTotal *prometheus.CounterVec
	// ChallengesTotal counts captcha challenges by outcome
	ChallengesTotal *prometheus.CounterVec
	// UpstreamErrorsTotal counts upstream API failures by operation and kind
	UpstreamErrorsTotal *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		AccountStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "accounts",
				Help:      "Number of accounts per lifecycle status",
			},
			[]string{"status"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Total number of login attempts",
			},
			[]string{"outcome"},
		),
		LoginDrivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_drives_total",
				Help:      "Total number of completed login drives",
			},
			[]string{"outcome"},
		),
		KeepAlivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keepalives_total",
				Help:      "Total number of keepalive requests",
			},
			[]string{"outcome"},
		),
		PointsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "points",
				Help:      "Last observed reward points per account",
			},
			[]string{"account", "source"},
		),
		ReloginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relogins_total",
				Help:      "Total number of token refresh drives",
			},
			[]string{"trigger"},
		),
		ChallengesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "challenges_total",
				Help:      "Total number of captcha challenges",
			},
			[]string{"outcome"},
		),
		UpstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream API failures",
			},
			[]string{"operation", "kind"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.AccountStatus,
		m.LoginAttemptsTotal,
		m.LoginDrivesTotal,
		m.KeepAlivesTotal,
		m.PointsTotal,
		m.ReloginsTotal,
		m.ChallengesTotal,
		m.UpstreamErrorsTotal,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetAccountStatus sets the gauge for one lifecycle status
func (m *Metrics) SetAccountStatus(status string, count int) {
	m.AccountStatus.WithLabelValues(status).Set(float64(count))
}

// RecordLoginAttempt records one login attempt
func (m *Metrics) RecordLoginAttempt(outcome string) {
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordLoginDrive records a completed login drive
func (m *Metrics) RecordLoginDrive(outcome string) {
	m.LoginDrivesTotal.WithLabelValues(outcome).Inc()
}

// RecordKeepAlive records one keepalive outcome
func (m *Metrics) RecordKeepAlive(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.KeepAlivesTotal.WithLabelValues(outcome).Inc()
}

// SetPoints records the last observed points for an account
func (m *Metrics) SetPoints(account, source string, points float64) {
	m.PointsTotal.WithLabelValues(account, source).Set(points)
}

// RecordRelogin records a token refresh drive with its trigger
func (m *Metrics) RecordRelogin(trigger string) {
	m.ReloginsTotal.WithLabelValues(trigger).Inc()
}

// RecordChallenge records a captcha challenge outcome
func (m *Metrics) RecordChallenge(outcome string) {
	m.ChallengesTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstreamError records an upstream API failure
func (m *Metrics) RecordUpstreamError(operation, kind string) {
	m.UpstreamErrorsTotal.WithLabelValues(operation, kind).Inc()
}
