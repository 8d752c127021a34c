package metricsvc

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/educa/core/ordering"
)

const namespace = "educa"

type Metrics struct {
	registry      *prometheus.Registry
	orderUpdates  *prometheus.CounterVec
	remindersSent prometheus.Counter
}

var _ ordering.Recorder = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		orderUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_updates_total",
			Help:      "Reorder batch entries by entity kind and whether they were applied or skipped.",
		}, []string{"kind", "applied"}),
		remindersSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enroll_reminders_sent_total",
			Help:      "Enrollment reminder emails sent.",
		}),
	}
}

func (m *Metrics) OrderUpdated(kind string, applied bool) {
	m.orderUpdates.WithLabelValues(kind, strconv.FormatBool(applied)).Inc()
}

func (m *Metrics) RemindersSent(n int) {
	m.remindersSent.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
