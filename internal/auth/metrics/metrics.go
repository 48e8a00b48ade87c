// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all auth flow metrics.
type Metrics struct {
	SignIns        *prometheus.CounterVec
	SignUps        *prometheus.CounterVec
	OAuthCallbacks *prometheus.CounterVec
	SignOuts       prometheus.Counter
}

// New creates and registers the auth metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		SignIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_sign_ins_total",
			Help: "Total password sign-in attempts by outcome",
		}, []string{"outcome"}),
		SignUps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_sign_ups_total",
			Help: "Total sign-up attempts by outcome",
		}, []string{"outcome"}),
		OAuthCallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_oauth_callbacks_total",
			Help: "Total OAuth callback results by provider and outcome",
		}, []string{"provider", "outcome"}),
		SignOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "authgate_sign_outs_total",
			Help: "Total sign-outs",
		}),
	}
}

// ObserveSignIn records a sign-in attempt outcome.
func (m *Metrics) ObserveSignIn(outcome string) {
	if m == nil {
		return
	}
	m.SignIns.WithLabelValues(outcome).Inc()
}

// ObserveSignUp records a sign-up attempt outcome.
func (m *Metrics) ObserveSignUp(outcome string) {
	if m == nil {
		return
	}
	m.SignUps.WithLabelValues(outcome).Inc()
}

// ObserveOAuthCallback records a callback outcome for a provider.
func (m *Metrics) ObserveOAuthCallback(provider, outcome string) {
	if m == nil {
		return
	}
	m.OAuthCallbacks.WithLabelValues(provider, outcome).Inc()
}

// ObserveSignOut records a sign-out.
func (m *Metrics) ObserveSignOut() {
	if m == nil {
		return
	}
	m.SignOuts.Inc()
}
