package chat

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the chat core's counters. All helpers are nil-safe so
// tests can pass a nil *Metrics and skip registration.
type Metrics struct {
	sessionsActive    prometheus.Gauge
	sessionsTotal     prometheus.Counter
	messagesPersisted prometheus.Counter
	persistFailures   prometheus.Counter
	broadcastSends    prometheus.Counter
	broadcastFailures prometheus.Counter
	sendersDropped    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Current number of live chat connections.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_sessions_total",
			Help: "Total chat connections accepted since start.",
		}),
		messagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages successfully appended to the store.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_persist_failures_total",
			Help: "Messages dropped because the store append failed.",
		}),
		broadcastSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_broadcast_sends_total",
			Help: "Individual send attempts during fan-out.",
		}),
		broadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_broadcast_send_failures_total",
			Help: "Send attempts that failed during fan-out.",
		}),
		sendersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_unknown_sender_drops_total",
			Help: "Messages dropped because the sender row no longer exists.",
		}),
	}

	reg.MustRegister(
		m.sessionsActive,
		m.sessionsTotal,
		m.messagesPersisted,
		m.persistFailures,
		m.broadcastSends,
		m.broadcastFailures,
		m.sendersDropped,
	)
	return m
}

func (m *Metrics) incSession() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) decSession() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) incPersisted() {
	if m == nil {
		return
	}
	m.messagesPersisted.Inc()
}

func (m *Metrics) incPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) incSends(attempted, failed int) {
	if m == nil {
		return
	}
	m.broadcastSends.Add(float64(attempted))
	m.broadcastFailures.Add(float64(failed))
}

func (m *Metrics) incSenderDropped() {
	if m == nil {
		return
	}
	m.sendersDropped.Inc()
}
