package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus
// metrics.
type PrometheusCollector struct {
	connectionsTotal    prometheus.Counter
	connectionsActive   prometheus.Gauge
	connectionsTimedOut prometheus.Counter

	authAttemptsTotal *prometheus.CounterVec

	commandsTotal *prometheus.CounterVec

	articlesServedTotal prometheus.Counter
	articleSizeBytes    prometheus.Histogram
	articlesPostedTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a PrometheusCollector with all metrics
// registered on reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papercut_connections_total",
			Help: "Total number of NNTP connections accepted.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papercut_connections_active",
			Help: "Number of currently active NNTP connections.",
		}),
		connectionsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papercut_connections_timed_out_total",
			Help: "Total number of connections dropped by the idle timer.",
		}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papercut_auth_attempts_total",
			Help: "Total number of AUTHINFO attempts.",
		}, []string{"result"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papercut_commands_total",
			Help: "Total number of NNTP commands processed.",
		}, []string{"command"}),

		articlesServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papercut_articles_served_total",
			Help: "Total number of articles served by ARTICLE, HEAD and BODY.",
		}),
		articleSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "papercut_article_size_bytes",
			Help:    "Size of served articles in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760},
		}),
		articlesPostedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papercut_articles_posted_total",
			Help: "Total number of POST attempts.",
		}, []string{"group", "result"}),
	}

	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.connectionsTimedOut,
		c.authAttemptsTotal,
		c.commandsTotal,
		c.articlesServedTotal,
		c.articleSizeBytes,
		c.articlesPostedTotal,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// ConnectionTimedOut counts an idle-timer disconnect.
func (c *PrometheusCollector) ConnectionTimedOut() {
	c.connectionsTimedOut.Inc()
}

// AuthAttempt increments the authentication attempts counter.
func (c *PrometheusCollector) AuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(result).Inc()
}

// CommandProcessed increments the per-command counter.
func (c *PrometheusCollector) CommandProcessed(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}

// ArticleServed counts a served article and observes its size.
func (c *PrometheusCollector) ArticleServed(sizeBytes int64) {
	c.articlesServedTotal.Inc()
	c.articleSizeBytes.Observe(float64(sizeBytes))
}

// ArticlePosted increments the post counter.
func (c *PrometheusCollector) ArticlePosted(group string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.articlesPostedTotal.WithLabelValues(group, result).Inc()
}
