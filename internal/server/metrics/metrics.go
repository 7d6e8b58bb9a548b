// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginTotal counts password login attempts by result
	// (success, failure, locked_out).
	LoginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionkeeper_logins_total",
		Help: "Password login attempts by result.",
	}, []string{"result"})

	// RotationTotal counts remember-me validations by result
	// (rotated, not_found, expired, lost_race).
	RotationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionkeeper_token_rotations_total",
		Help: "Remember-me token validations by result.",
	}, []string{"result"})

	// TheftSignals counts detected theft signals (valid series, wrong token).
	// Each one triggers revocation of every token for the affected user.
	TheftSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionkeeper_theft_signals_total",
		Help: "Remember-me theft signals detected.",
	})

	// TokensIssued counts remember-me tokens created.
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionkeeper_tokens_issued_total",
		Help: "Remember-me tokens issued.",
	})

	// TokensCleaned counts expired token records removed by cleanup runs.
	TokensCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionkeeper_tokens_cleaned_total",
		Help: "Expired remember-me tokens removed by cleanup.",
	})
)
