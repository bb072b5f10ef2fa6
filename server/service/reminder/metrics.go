package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meetwhenah",
		Subsystem: "reminder",
		Name:      "ticks_total",
		Help:      "Dispatch rounds run.",
	})
	metricSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetwhenah",
		Subsystem: "reminder",
		Name:      "sent_total",
		Help:      "Reminders delivered, by kind.",
	}, []string{"kind"})
	metricSendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetwhenah",
		Subsystem: "reminder",
		Name:      "send_failures_total",
		Help:      "Reminder sends that failed, by kind.",
	}, []string{"kind"})
)
