package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EventsAppended counts events admitted to the log, by event kind.
var EventsAppended = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsim_events_appended_total",
		Help: "Total number of events appended to the event log",
	},
	[]string{"kind"},
)

// TradesExecuted counts executed trades by side (BUY/SELL).
var TradesExecuted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsim_trades_executed_total",
		Help: "Total number of trades executed by the market engine",
	},
	[]string{"side"},
)

// ActionsRejected counts rejected trade and message actions by reason.
var ActionsRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsim_actions_rejected_total",
		Help: "Total number of agent actions rejected at the boundary",
	},
	[]string{"reason"},
)

// MessagesRouted counts routed messages by scope (private/broadcast).
var MessagesRouted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsim_messages_routed_total",
		Help: "Total number of messages routed by the message bus",
	},
	[]string{"scope"},
)

// ViolationsDetected counts detected violations by kind and severity.
var ViolationsDetected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsim_violations_detected_total",
		Help: "Total number of violations produced by the regulation engine",
	},
	[]string{"kind", "severity"},
)

// DetectionLatency records latency distribution for regulation passes.
var DetectionLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "marketsim_detection_pass_latency_seconds",
		Help:    "Latency in seconds of one regulation engine detection pass",
		Buckets: prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(EventsAppended, TradesExecuted, ActionsRejected)
	prometheus.MustRegister(MessagesRouted, ViolationsDetected, DetectionLatency)
}
