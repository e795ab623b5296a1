package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves the registry's metrics in OpenMetrics-capable
// form; the daemon mounts it at /metrics.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	stageDuration     *prom.HistogramVec
	buildDuration     prom.Histogram
	stageResults      *prom.CounterVec
	buildOutcome      *prom.CounterVec
	renderDuration    *prom.HistogramVec
	renderResults     *prom.CounterVec
	syncDuration      *prom.HistogramVec
	syncResults       *prom.CounterVec
	syncRetries       *prom.CounterVec
	releasesCreated   prom.Counter
	releasesPublished prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bindery",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bindery",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bindery",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bindery",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.renderDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bindery",
			Name:      "render_duration_seconds",
			Help:      "Duration of per-format render operations",
			Buckets:   prom.DefBuckets,
		}, []string{"format", "result"})
		pr.renderResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bindery",
			Name:      "render_results_total",
			Help:      "Render results by format and success/failure",
		}, []string{"format", "result"})
		pr.syncDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bindery",
			Name:      "sync_duration_seconds",
			Help:      "Duration of per-channel sync operations",
			Buckets:   prom.DefBuckets,
		}, []string{"channel", "result"})
		pr.syncResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bindery",
			Name:      "sync_results_total",
			Help:      "Sync results by channel and outcome",
		}, []string{"channel", "result"})
		pr.syncRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bindery",
			Name:      "sync_retries_total",
			Help:      "Total sync retries (transient failures)",
		}, []string{"channel"})
		pr.releasesCreated = prom.NewCounter(prom.CounterOpts{
			Namespace: "bindery",
			Name:      "releases_created_total",
			Help:      "Count of draft releases created",
		})
		pr.releasesPublished = prom.NewCounter(prom.CounterOpts{
			Namespace: "bindery",
			Name:      "releases_published_total",
			Help:      "Count of releases promoted to published",
		})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
			pr.renderDuration, pr.renderResults, pr.syncDuration, pr.syncResults, pr.syncRetries,
			pr.releasesCreated, pr.releasesPublished)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRenderDuration(format string, d time.Duration, success bool) {
	if p == nil || p.renderDuration == nil {
		return
	}
	p.renderDuration.WithLabelValues(format, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRenderResult(format string, success bool) {
	if p == nil || p.renderResults == nil {
		return
	}
	p.renderResults.WithLabelValues(format, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) ObserveSyncDuration(channel string, d time.Duration, success bool) {
	if p == nil || p.syncDuration == nil {
		return
	}
	p.syncDuration.WithLabelValues(channel, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncResult(channel string, result ResultLabel) {
	if p == nil || p.syncResults == nil {
		return
	}
	p.syncResults.WithLabelValues(channel, string(result)).Inc()
}

func (p *PrometheusRecorder) IncSyncRetry(channel string) {
	if p == nil || p.syncRetries == nil {
		return
	}
	p.syncRetries.WithLabelValues(channel).Inc()
}

func (p *PrometheusRecorder) IncReleaseCreated() {
	if p == nil || p.releasesCreated == nil {
		return
	}
	p.releasesCreated.Inc()
}

func (p *PrometheusRecorder) IncReleasePublished() {
	if p == nil || p.releasesPublished == nil {
		return
	}
	p.releasesPublished.Inc()
}
