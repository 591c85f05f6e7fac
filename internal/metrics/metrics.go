package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoundsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_rounds_started_total",
		Help: "Rounds opened for betting, per table.",
	}, []string{"table"})

	RoundsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_rounds_completed_total",
		Help: "Rounds settled and completed, per table.",
	}, []string{"table"})

	RoundsVoided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_rounds_voided_total",
		Help: "Rounds voided after exhausting outcome retries, per table.",
	}, []string{"table"})

	ResolveRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_resolve_retries_total",
		Help: "Outcome resolution attempts that failed and were retried.",
	}, []string{"table"})

	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_bets_placed_total",
		Help: "Accepted bets, per table.",
	}, []string{"table"})

	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_bets_rejected_total",
		Help: "Rejected bet submissions by reason.",
	}, []string{"reason"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_settlements_total",
		Help: "Bet settlements by terminal status.",
	}, []string{"status"})

	CashOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_cashouts_total",
		Help: "Successful in-flight cash-outs.",
	})

	HubClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_clients",
		Help: "Currently connected observers.",
	})

	HubDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_total",
		Help: "Observers dropped for not keeping up with the event stream.",
	})

	FeedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_messages_total",
		Help: "Outcome feed messages consumed.",
	})
)
