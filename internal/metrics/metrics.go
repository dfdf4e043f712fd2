package metrics

import (
	"net/http"
	"time"

	"trading-agent/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the agent's Prometheus collectors on a private registry.
type Registry struct {
	reg *prometheus.Registry

	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	Notifications  *prometheus.CounterVec
	LastRun        prometheus.Gauge
	LastSide       prometheus.Gauge
	LastConfidence prometheus.Gauge
	LastAnomaly    prometheus.Gauge
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_runs_total",
				Help: "Analysis runs by report type",
			},
			[]string{"type"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agent_run_duration_seconds",
				Help:    "Wall time of one analysis run",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_notifications_total",
				Help: "Notification attempts by channel and result",
			},
			[]string{"channel", "result"},
		),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run",
		}),
		LastSide: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_last_signal_side",
			Help: "Side of the last report: 1 buy, -1 sell, 0 none",
		}),
		LastConfidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_last_confidence",
			Help: "Confidence of the last report in percent",
		}),
		LastAnomaly: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_last_anomaly_score",
			Help: "Isolation-forest score of the last H1 bar",
		}),
	}
	r.reg.MustRegister(
		r.Runs,
		r.RunDuration,
		r.Notifications,
		r.LastRun,
		r.LastSide,
		r.LastConfidence,
		r.LastAnomaly,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveRun records a finished run. It is nil-safe.
func (r *Registry) ObserveRun(rep *domain.Report, took time.Duration) {
	if r == nil || rep == nil {
		return
	}
	r.Runs.WithLabelValues(string(rep.Type)).Inc()
	r.RunDuration.Observe(took.Seconds())
	r.LastRun.Set(float64(rep.GeneratedAt.Unix()))
	r.LastSide.Set(sideValue(rep.Side))
	r.LastConfidence.Set(float64(rep.Confidence))
	r.LastAnomaly.Set(rep.AnomalyScore)
}

func (r *Registry) ObserveNotify(channel string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Notifications.WithLabelValues(channel, result).Inc()
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func sideValue(s domain.Side) float64 {
	switch s {
	case domain.SideBuy:
		return 1
	case domain.SideSell:
		return -1
	default:
		return 0
	}
}
