// Package metrics exposes the Prometheus counters for the auth flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsTotal counts callback outcomes by result: success,
	// state_mismatch, exchange_failed, userinfo_failed,
	// email_unverified, storage_error, provider_error.
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "OAuth callback outcomes by result.",
	}, []string{"result"})

	SessionsInvalidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_invalidated_total",
		Help: "Sessions invalidated via logout.",
	})

	TokenRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_rejections_total",
		Help: "Session tokens rejected during validation.",
	})
)
