package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesAppended counts messages appended to room logs.
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Total messages appended",
		},
		[]string{"kind"}, // "member" or "system"
	)

	// ReadAdvances counts read-cursor advancements that actually moved.
	ReadAdvances = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_read_advances_total",
			Help: "Total read cursor advancements",
		},
	)

	// SearchQueries counts keyword searches.
	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_search_queries_total",
			Help: "Total search queries",
		},
	)

	// EventsBroadcast counts realtime events fanned out, by event name.
	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_broadcast_total",
			Help: "Total realtime events broadcast",
		},
		[]string{"event"},
	)
)
