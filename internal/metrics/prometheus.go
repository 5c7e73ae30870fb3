package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InitiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsight_oauth_initiations_total",
		Help: "Total number of OAuth flow initiations.",
	}, []string{"provider"})

	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsight_oauth_callbacks_total",
		Help: "Total number of OAuth callbacks by outcome.",
	}, []string{"provider", "outcome"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adsight_rate_limited_requests_total",
		Help: "Total number of requests rejected by the rate limiter.",
	})

	RevokesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsight_oauth_revokes_total",
		Help: "Total number of credential disconnects.",
	}, []string{"provider"})

	AccountsSyncedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsight_ad_accounts_synced_total",
		Help: "Total number of ad accounts written by discovery.",
	}, []string{"provider"})
)
