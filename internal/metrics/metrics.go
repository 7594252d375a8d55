// Package metrics provides Prometheus metrics for the training pipeline.
// A pipeline run is a batch job, so besides registering its collectors the
// package can push the final values to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Trainer metrics
	TrainerRuns      *prometheus.CounterVec // Trainer runs by outcome
	TrainingDuration prometheus.Histogram   // Duration of a trainer run

	// Model quality, measured on the test split
	ModelAccuracy  prometheus.Gauge
	ModelF1        prometheus.Gauge
	ModelPrecision prometheus.Gauge
	ModelRecall    prometheus.Gauge
	// Accuracy on the training split, the value the acceptance gate uses
	ModelTrainAccuracy prometheus.Gauge

	// Stage metrics
	IngestedDocuments prometheus.Counter       // Documents exported from MongoDB
	StageDuration     *prometheus.HistogramVec // Duration of each pipeline stage

	// System metrics
	ErrorsTotal *prometheus.CounterVec // Errors by kind

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// When the registerer is also a Gatherer it is the source for Push.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}

	return &Metrics{
		TrainerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_runs_total",
			Help: "Total number of trainer runs by outcome",
		}, []string{"outcome"}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trainer_duration_seconds",
			Help:    "Duration of trainer runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		ModelAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_accuracy",
			Help: "Accuracy of the last trained model on the test split",
		}),
		ModelF1: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_f1",
			Help: "F1 score of the last trained model on the test split",
		}),
		ModelPrecision: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_precision",
			Help: "Precision of the last trained model on the test split",
		}),
		ModelRecall: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_recall",
			Help: "Recall of the last trained model on the test split",
		}),
		ModelTrainAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_train_accuracy",
			Help: "Accuracy of the last trained model on the training split",
		}),
		IngestedDocuments: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingested_documents_total",
			Help: "Total number of documents exported from the source collection",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered by kind",
		}, []string{"kind"}),
		gatherer: gatherer,
	}
}

// Push sends every gathered metric to the Pushgateway at url under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is empty")
	}
	if err := push.New(url, job).Gatherer(m.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
