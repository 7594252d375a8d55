package metrics

// MetricsWrapper adapts Metrics to the narrow interfaces the pipeline stages
// consume, so those packages never import Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) TrainerRunsInc(outcome string) {
	w.m.TrainerRuns.WithLabelValues(outcome).Inc()
}

func (w *MetricsWrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *MetricsWrapper) ModelMetricsSet(accuracy, f1, precision, recall float64) {
	w.m.ModelAccuracy.Set(accuracy)
	w.m.ModelF1.Set(f1)
	w.m.ModelPrecision.Set(precision)
	w.m.ModelRecall.Set(recall)
}

func (w *MetricsWrapper) TrainAccuracySet(v float64) {
	w.m.ModelTrainAccuracy.Set(v)
}

func (w *MetricsWrapper) IngestedDocumentsAdd(n int) {
	w.m.IngestedDocuments.Add(float64(n))
}

func (w *MetricsWrapper) StageDurationObserve(stage string, seconds float64) {
	w.m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

func (w *MetricsWrapper) ErrorsInc(kind string) {
	w.m.ErrorsTotal.WithLabelValues(kind).Inc()
}
