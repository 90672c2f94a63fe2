package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ledgerMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glxy_ledger_mutations_total",
			Help: "Committed ledger mutations by type and planet",
		},
		[]string{"type", "planet"},
	)
	ledgerStardust = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glxy_ledger_stardust_total",
			Help: "Stardust moved by committed mutations",
		},
		[]string{"type"},
	)
	ledgerRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glxy_ledger_rejected_total",
			Help: "Ledger mutations refused before commit",
		},
		[]string{"reason"},
	)
	webhookOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glxy_payment_webhook_outcomes_total",
			Help: "Payment webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)
	adapterCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glxy_planet_actions_total",
			Help: "Billed planet actions by planet, type and result",
		},
		[]string{"planet", "type", "result"},
	)
	revocationFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glxy_session_revocation_fallbacks_total",
			Help: "Revocation lookups or writes served locally because Redis failed",
		},
		[]string{"op"},
	)
	reconcileDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "glxy_reconcile_drifted_profiles",
			Help: "Profiles whose balance disagreed with the ledger on the last run",
		},
	)
)

func init() {
	prometheus.MustRegister(ledgerMutations)
	prometheus.MustRegister(ledgerStardust)
	prometheus.MustRegister(ledgerRejected)
	prometheus.MustRegister(webhookOutcomes)
	prometheus.MustRegister(adapterCalls)
	prometheus.MustRegister(revocationFallbacks)
	prometheus.MustRegister(reconcileDrift)
}
