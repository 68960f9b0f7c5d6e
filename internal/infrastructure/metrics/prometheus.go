package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/docflow/internal/application/port"
)

const namespace = "docflow"

// Prometheus records workflow metrics on its own registry
type Prometheus struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	pushes      *prometheus.CounterVec
	swept       prometheus.Counter
	sweeps      prometheus.Counter
}

// NewPrometheus creates the collectors and registers them together with the
// Go runtime and process collectors
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Request status transitions broken down by source, target and result.",
		}, []string{"from", "to", "result"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "pushes_total",
			Help:      "Live notification deliveries by result.",
		}, []string{"result"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "expired_deleted_total",
			Help:      "Notifications removed by the expiry sweeper.",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "sweeps_total",
			Help:      "Completed expiry sweeps.",
		}),
	}

	p.registry.MustRegister(
		p.transitions,
		p.pushes,
		p.swept,
		p.sweeps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) TransitionRecorded(from, to, result string) {
	if from == "" {
		from = "unknown"
	}
	p.transitions.With(prometheus.Labels{"from": from, "to": to, "result": result}).Inc()
}

func (p *Prometheus) PushRecorded(result string) {
	p.pushes.WithLabelValues(result).Inc()
}

func (p *Prometheus) NotificationsSwept(count int) {
	p.sweeps.Inc()
	if count > 0 {
		p.swept.Add(float64(count))
	}
}

// Handler serves the registry in the text exposition format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

var _ port.Metrics = (*Prometheus)(nil)
