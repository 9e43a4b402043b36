package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "shipwright"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stepDuration    *prom.HistogramVec
	stepResults     *prom.CounterVec
	submitDuration  *prom.HistogramVec
	submitResults   *prom.CounterVec
	runDuration     prom.Histogram
	runOutcomes     *prom.CounterVec
	excludedModules prom.Gauge
	releaseStates   *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual build steps by step kind",
			Buckets:   prom.DefBuckets,
		}, []string{"step"}),
		stepResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "step_results_total",
			Help:      "Step result counts by outcome",
		}, []string{"step", "result"}),
		submitDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Duration of publication submissions by target",
			Buckets:   prom.DefBuckets,
		}, []string{"target"}),
		submitResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "submit_results_total",
			Help:      "Publication submission results by target",
		}, []string{"target", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   prom.DefBuckets,
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"}),
		excludedModules: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "docs_excluded_modules",
			Help:      "Modules left out of the last documentation aggregate",
		}),
		releaseStates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "release_state_transitions_total",
			Help:      "Release coordinator state transitions by target state",
		}, []string{"state"}),
	}
	reg.MustRegister(pr.stepDuration, pr.stepResults, pr.submitDuration, pr.submitResults,
		pr.runDuration, pr.runOutcomes, pr.excludedModules, pr.releaseStates)
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveSubmitDuration(target string, d time.Duration) {
	if p == nil {
		return
	}
	p.submitDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSubmitResult(target string, result ResultLabel) {
	if p == nil {
		return
	}
	p.submitResults.WithLabelValues(target, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetExcludedModules(n int) {
	if p == nil {
		return
	}
	p.excludedModules.Set(float64(n))
}

func (p *PrometheusRecorder) IncReleaseState(state string) {
	if p == nil {
		return
	}
	p.releaseStates.WithLabelValues(state).Inc()
}
