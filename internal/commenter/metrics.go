package commenter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thipowin/ThipoSelf/pkg/monitoring"
)

// Metrics instruments the engine. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Events          *prometheus.CounterVec
	DeliveryAttempt *prometheus.CounterVec
	Deliveries      *prometheus.HistogramVec
	Reports         *prometheus.CounterVec
}

// NewMetrics registers the engine metrics on mc.
func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	m := &Metrics{}
	m.Events = mc.NewCounter("post_events_total", "Channel post events by result", []string{"result"})
	m.DeliveryAttempt = mc.NewCounter("delivery_attempts_total", "Comment send attempts by result class", []string{"class"})
	m.Deliveries = mc.NewHistogram("delivery_attempts", "Attempts used per delivery", []string{"result"},
		[]float64{1, 2, 3, 5, 10, 20, 30, 40, 50})
	m.Reports = mc.NewCounter("reports_total", "Operator reports by kind and delivery status", []string{"kind", "delivered"})
	return m
}

func (m *Metrics) event(r Result) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(string(r)).Inc()
}

func (m *Metrics) attempt(c FailureClass) {
	if m == nil {
		return
	}
	m.DeliveryAttempt.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) delivered(result string, attempts int) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result).Observe(float64(attempts))
}

func (m *Metrics) report(kind ReportKind, ok bool) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(string(kind), strconv.FormatBool(ok)).Inc()
}
