package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coindoro_transitions_total",
	Help: "Number of session state transitions",
}, []string{"kind"})

var purchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coindoro_break_purchases_total",
	Help: "Number of break purchase attempts by result",
}, []string{"result"})

var unitsEarned = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coindoro_units_earned_total",
	Help: "Reward units earned by closed work intervals",
})

var unitsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coindoro_units_spent_total",
	Help: "Reward units spent on breaks",
})

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "coindoro_active_sessions",
	Help: "Number of sessions held by the manager",
})

var recordsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coindoro_history_records_dropped_total",
	Help: "History records dropped because the writer queue was full",
})
