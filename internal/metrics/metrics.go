// Package metrics exposes Prometheus instruments for scrape runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newssync"

type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	ArticlesSaved     *prometheus.CounterVec
	ArticlesSkipped   *prometheus.CounterVec
	FetchAttempts     *prometheus.CounterVec
	RemoteWritesTotal *prometheus.CounterVec
}

// New registers all instruments with reg, or the default registerer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scrape runs by feed and final status.",
		}, []string{"feed", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a scrape run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"feed"}),
		ArticlesSaved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_saved_total",
			Help:      "Articles included in a remote write.",
		}, []string{"feed"}),
		ArticlesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_skipped_total",
			Help:      "Feed entries whose extraction failed.",
		}, []string{"feed"}),
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Article page fetch attempts by outcome.",
		}, []string{"outcome"}),
		RemoteWritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_writes_total",
			Help:      "Remote store writes by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveFetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(feed, status string, saved, skipped int, took time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(feed, status).Inc()
	m.RunDuration.WithLabelValues(feed).Observe(took.Seconds())
	m.ArticlesSaved.WithLabelValues(feed).Add(float64(saved))
	m.ArticlesSkipped.WithLabelValues(feed).Add(float64(skipped))
}

func (m *Metrics) ObserveRemoteWrite(result string) {
	if m == nil {
		return
	}
	m.RemoteWritesTotal.WithLabelValues(result).Inc()
}
