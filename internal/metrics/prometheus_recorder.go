package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	stageDuration  *prom.HistogramVec
	runDuration    prom.Histogram
	runOutcome     *prom.CounterVec
	triggers       *prom.CounterVec
	publishResults *prom.CounterVec
	publishedFiles prom.Histogram
	queueDepth     prom.Gauge
	gitRetries     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpages",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual run stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docpages",
			Name:      "run_duration_seconds",
			Help:      "Total run duration from trigger to push",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpages",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"})
		pr.triggers = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpages",
			Name:      "triggers_total",
			Help:      "Fired triggers by kind",
		}, []string{"kind"})
		pr.publishResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpages",
			Name:      "publish_results_total",
			Help:      "Publication attempts by whether a push happened",
		}, []string{"result"})
		pr.publishedFiles = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docpages",
			Name:      "published_files",
			Help:      "Files moved to the hosting branch per publication",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
		})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docpages",
			Name:      "queue_depth",
			Help:      "Pending runs in the daemon queue",
		})
		pr.gitRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpages",
			Name:      "git_retries_total",
			Help:      "Retried transient git operations",
		}, []string{"op"})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.runOutcome, pr.triggers,
			pr.publishResults, pr.publishedFiles, pr.queueDepth, pr.gitRetries)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome OutcomeLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncTrigger(kind string) {
	if p == nil || p.triggers == nil {
		return
	}
	p.triggers.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncPublish(pushed bool) {
	if p == nil || p.publishResults == nil {
		return
	}
	res := "no_change"
	if pushed {
		res = "pushed"
	}
	p.publishResults.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) ObservePublishedFiles(n int) {
	if p == nil || p.publishedFiles == nil {
		return
	}
	p.publishedFiles.Observe(float64(n))
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) IncGitRetry(op string) {
	if p == nil || p.gitRetries == nil {
		return
	}
	p.gitRetries.WithLabelValues(op).Inc()
}
