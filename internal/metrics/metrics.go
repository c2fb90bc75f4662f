// Package metrics exposes prometheus counters for the auth service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	LoginAttempts  *prometheus.CounterVec
	RateLimited    *prometheus.CounterVec
	PasswordResets prometheus.Counter
}

// New registers and returns the service metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the service metrics on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by action.",
		}, []string{"action"}),
		PasswordResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Successful password updates.",
		}),
	}
}
