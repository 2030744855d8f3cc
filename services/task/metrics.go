package task

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	claimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boostfix_claims_total",
		Help: "Claims by outcome.",
	}, []string{"outcome"})

	verificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boostfix_verifications_total",
		Help: "Platform verifications by action kind and result.",
	}, []string{"kind", "result"})

	verificationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boostfix_verification_duration_seconds",
		Help:    "Latency of platform verifications.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	rewardsCredited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boostfix_rewards_credited_total",
		Help: "Sum of rewards credited to users, in token units.",
	})

	flushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boostfix_state_flushes_total",
		Help: "State store flushes by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(claimsTotal, verificationsTotal, verificationSeconds, rewardsCredited, flushesTotal)
}

func verificationResult(confirmed bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case confirmed:
		return "confirmed"
	default:
		return "rejected"
	}
}
