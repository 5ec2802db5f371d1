package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	experimentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaosmonkey",
		Name:      "experiments_total",
		Help:      "Outcome records produced per terminal status.",
	}, []string{"status"})

	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaosmonkey",
		Name:      "rollbacks_total",
		Help:      "Rollback enforcement attempts per outcome.",
	}, []string{"outcome"})
)
