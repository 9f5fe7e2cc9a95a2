package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/connection"
	"github.com/convoshop/realtime/internal/transport"
)

// Source is the observable surface of a connection.
type Source interface {
	OnStatusChange(fn connection.StatusObserver) func()
	OnError(fn connection.ErrorObserver) func()
	OnAny(h bus.Handler) func()
}

// Metrics holds the realtime collectors.
type Metrics struct {
	status      *prometheus.GaugeVec
	transport   *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	authErrors  *prometheus.CounterVec
	envelopes   *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_status",
			Help:      "1 for the current connection status, 0 otherwise.",
		}, []string{"status"}),
		transport: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_transport",
			Help:      "1 for the transport of the current attempt, 0 otherwise.",
		}, []string{"transport"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Status changes by new status and transport.",
		}, []string{"status", "transport"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_failures_total",
			Help:      "Failed attempts and dropped sessions by transport.",
		}, []string{"transport"}),
		authErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Handshakes rejected as unauthorized, by transport.",
		}, []string{"transport"}),
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_received_total",
			Help:      "Envelopes delivered to subscribers, by event.",
		}, []string{"event"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Dropped payloads and recovered panics, by kind.",
		}, []string{"kind"}),
	}

	collectors := []prometheus.Collector{
		m.status, m.transport, m.transitions, m.failures,
		m.authErrors, m.envelopes, m.diagnostics,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	m.setStatus(connection.StatusDisconnected, transport.KindNone)
	return m, nil
}

// Bind starts recording src. The returned func detaches.
func (m *Metrics) Bind(src Source) func() {
	unsubs := []func(){
		src.OnStatusChange(func(s connection.Status, kind transport.Kind) {
			m.transitions.WithLabelValues(string(s), kind.String()).Inc()
			m.setStatus(s, kind)
		}),
		src.OnError(func(err error, kind transport.Kind) {
			m.failures.WithLabelValues(kind.String()).Inc()
			if transport.IsAuth(err) {
				m.authErrors.WithLabelValues(kind.String()).Inc()
			}
		}),
		src.OnAny(func(env bus.Envelope) {
			m.envelopes.WithLabelValues(env.Event).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (m *Metrics) setStatus(s connection.Status, kind transport.Kind) {
	for _, st := range connection.Statuses {
		v := 0.0
		if st == s {
			v = 1
		}
		m.status.WithLabelValues(string(st)).Set(v)
	}
	for _, k := range transport.Kinds {
		v := 0.0
		if k == kind && s != connection.StatusDisconnected {
			v = 1
		}
		m.transport.WithLabelValues(k.String()).Set(v)
	}
}

// Diagnostics returns a sink that counts each diagnostic and forwards it to
// next.
func (m *Metrics) Diagnostics(next bus.Diagnostics) bus.Diagnostics {
	return bus.DiagnosticsFunc(func(d bus.Diagnostic) {
		m.diagnostics.WithLabelValues(string(d.Kind)).Inc()
		if next != nil {
			next.Report(d)
		}
	})
}

// Handler serves g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
