package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canarytalk_active_connections",
		Help: "Number of authenticated websocket connections.",
	})
	messagesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canarytalk_messages_stored_total",
		Help: "Envelopes appended to the message store.",
	})
	messagesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canarytalk_messages_forwarded_total",
		Help: "Envelopes forwarded live to an online recipient.",
	})
	messagesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canarytalk_messages_flushed_total",
		Help: "Envelopes delivered from the offline mailbox at connect time.",
	})
)
