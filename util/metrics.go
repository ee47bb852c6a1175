package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	futuresRegisteredCounter prometheus.Counter
	futuresResolvedCounter   prometheus.Counter
	futuresCancelledCounter  prometheus.Counter
	futuresTimedOutCounter   prometheus.Counter
	unknownFutureCounter     prometheus.Counter
	fallbackActionCounter    *prometheus.CounterVec
	messagesSentCounter      *prometheus.CounterVec
	inboundDroppedCounter    *prometheus.CounterVec
	connectivityCounter      *prometheus.CounterVec
	pendingFuturesGauge      prometheus.Gauge
	activeSessionsGauge      prometheus.Gauge
	activeTablesGauge        prometheus.Gauge
}

func (m *metrics) FutureRegistered() {
	m.futuresRegisteredCounter.Inc()
	m.pendingFuturesGauge.Inc()
}

func (m *metrics) FutureResolved() {
	m.futuresResolvedCounter.Inc()
	m.pendingFuturesGauge.Dec()
}

func (m *metrics) FutureCancelled() {
	m.futuresCancelledCounter.Inc()
	m.pendingFuturesGauge.Dec()
}

func (m *metrics) FutureTimedOut() {
	m.futuresTimedOutCounter.Inc()
}

func (m *metrics) UnknownFutureReply() {
	m.unknownFutureCounter.Inc()
}

func (m *metrics) FallbackAction(action string) {
	m.fallbackActionCounter.WithLabelValues(action).Inc()
}

func (m *metrics) MessageSent(msgType string) {
	m.messagesSentCounter.WithLabelValues(msgType).Inc()
}

func (m *metrics) InboundDropped(reason string) {
	m.inboundDroppedCounter.WithLabelValues(reason).Inc()
}

func (m *metrics) ConnectivityLost() {
	m.connectivityCounter.WithLabelValues("lost").Inc()
}

func (m *metrics) ConnectivityRestored() {
	m.connectivityCounter.WithLabelValues("restored").Inc()
}

func (m *metrics) SessionOpened() {
	m.activeSessionsGauge.Inc()
}

func (m *metrics) SessionClosed() {
	m.activeSessionsGauge.Dec()
}

func (m *metrics) SetActiveTablesCount(count int) {
	m.activeTablesGauge.Set(float64(count))
}

var Metrics = &metrics{
	futuresRegisteredCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_registered_total",
		Help: "Total number of action requests registered with a correlator",
	}),
	futuresResolvedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_resolved_total",
		Help: "Total number of action requests resolved by a client reply",
	}),
	futuresCancelledCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_cancelled_total",
		Help: "Total number of action requests cancelled (timeout, disconnect, hand over)",
	}),
	futuresTimedOutCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_timed_out_total",
		Help: "Total number of action requests that got no reply in time",
	}),
	unknownFutureCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "future_unknown_replies_total",
		Help: "Total number of replies for a future id that was not pending",
	}),
	fallbackActionCounter: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fallback_actions_total",
		Help: "Total number of actions chosen on behalf of a silent or disconnected player",
	}, []string{"action"}),
	messagesSentCounter: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Total number of protocol messages sent, by message type",
	}, []string{"type"}),
	inboundDroppedCounter: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inbound_messages_dropped_total",
		Help: "Total number of inbound player messages dropped, by reason",
	}, []string{"reason"}),
	connectivityCounter: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "player_connectivity_events_total",
		Help: "Total number of players reported lost or restored",
	}, []string{"event"}),
	pendingFuturesGauge: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pending_futures_count",
		Help: "Number of action requests waiting for a reply",
	}),
	activeSessionsGauge: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions_count",
		Help: "Number of connected player sessions",
	}),
	activeTablesGauge: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_tables_count",
		Help: "Count of the entries in the table manager",
	}),
}
