package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gamesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chickenhunt_games_created_total",
		Help: "Games created",
	})

	statusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chickenhunt_status_transitions_total",
		Help: "Successful game status transitions",
	}, []string{"from", "to"})

	ledgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chickenhunt_ledger_operations_total",
		Help: "Ledger operations by kind and outcome",
	}, []string{"kind", "result"})

	wsSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chickenhunt_ws_subscriptions",
		Help: "Open websocket subscriptions",
	})

	busEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chickenhunt_bus_events_published_total",
		Help: "Change events fanned out to subscribers",
	}, []string{"table", "type"})
)
