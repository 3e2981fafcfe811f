package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Metrics struct {
	gateDecisions     *prometheus.CounterVec
	pipelineRuns      *prometheus.CounterVec
	uploads           *prometheus.CounterVec
	uploadedArtifacts prometheus.Counter
	uploadedBytes     prometheus.Counter
	uploadDuration    prometheus.Histogram
	publishedEvents   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, usually
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashgate_gate_decisions_total",
			Help: "Crash events seen by the submission gate, by decision reason",
		}, []string{"reason", "submitted"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashgate_pipeline_runs_total",
			Help: "Post-build pipeline runs, by outcome",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashgate_symbol_uploads_total",
			Help: "Symbol batch uploads, by result",
		}, []string{"result"}),
		uploadedArtifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashgate_uploaded_artifacts_total",
			Help: "Symbol files sent to the reporting service",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashgate_uploaded_bytes_total",
			Help: "Bytes of symbol files sent to the reporting service",
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crashgate_upload_duration_seconds",
			Help:    "Time spent uploading one symbol batch",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		publishedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashgate_published_events_total",
			Help: "Accepted crash events published to the message bus, by result",
		}, []string{"result"}),
	}
	metrics.register(reg)
	return metrics
}

func (m *Metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.gateDecisions,
		m.pipelineRuns,
		m.uploads,
		m.uploadedArtifacts,
		m.uploadedBytes,
		m.uploadDuration,
		m.publishedEvents,
	)
}

func (m *Metrics) ObserveGateDecision(reason string, submitted bool) {
	m.gateDecisions.WithLabelValues(reason, fmt.Sprint(submitted)).Inc()
}

func (m *Metrics) ObservePipelineRun(outcome string) {
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUpload(success bool, artifacts int, bytes int64, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
		m.uploadedArtifacts.Add(float64(artifacts))
		m.uploadedBytes.Add(float64(bytes))
	}
	m.uploads.WithLabelValues(result).Inc()
	m.uploadDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObservePublish(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.publishedEvents.WithLabelValues(result).Inc()
}

// Push sends everything gathered from g to a Pushgateway. Build runs are too short
// lived to be scraped.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
