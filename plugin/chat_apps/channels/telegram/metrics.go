package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meetwhenah",
		Subsystem: "telegram",
		Name:      "messages_sent_total",
		Help:      "Outbound messages delivered to the bot API.",
	})
	metricSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meetwhenah",
		Subsystem: "telegram",
		Name:      "send_errors_total",
		Help:      "Outbound sends the bot API rejected.",
	})
)
