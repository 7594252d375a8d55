// Package trainer fits the classifier on the transformed datasets, scores
// it, gates it on training accuracy and persists the accepted model bundle.
//
// A Trainer handles exactly one run. Every failure is terminal and is
// reported as an *apperr.Error: KindDataLoad for unreadable inputs,
// KindTraining for fitting or scoring failures, KindModelRejected when the
// gate fails and KindPersist when the bundle cannot be written.
package trainer

import (
	"fmt"
	"time"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/arrays"
	"insurance-pipeline/internal/ml"
	"insurance-pipeline/internal/preprocess"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Run outcomes reported to metrics.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// MetricsInterface defines the metrics the trainer reports.
type MetricsInterface interface {
	TrainerRunsInc(outcome string)
	TrainingDurationObserve(seconds float64)
	ModelMetricsSet(accuracy, f1, precision, recall float64)
	TrainAccuracySet(accuracy float64)
}

// ModelFactory builds an unfitted classifier from hyperparameters.
type ModelFactory func(ml.Params) ml.Classifier

// RandomForestFactory is the default model factory.
func RandomForestFactory(p ml.Params) ml.Classifier {
	return ml.NewRandomForest(p)
}

// Trainer runs the train, evaluate, gate, persist workflow.
type Trainer struct {
	artifact DataTransformationArtifact
	config   Config
	newModel ModelFactory
	metrics  MetricsInterface

	state         State
	trainAccuracy float64
	scores        *ClassificationMetricArtifact
	importance    []float64
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithMetrics reports run outcomes and scores to m.
func WithMetrics(m MetricsInterface) Option {
	return func(t *Trainer) { t.metrics = m }
}

// WithModelFactory replaces the default random forest.
func WithModelFactory(f ModelFactory) Option {
	return func(t *Trainer) { t.newModel = f }
}

// New creates a trainer for one run over the transformation outputs.
func New(artifact DataTransformationArtifact, config Config, opts ...Option) *Trainer {
	t := &Trainer{
		artifact: artifact,
		config:   config,
		newModel: RandomForestFactory,
		state:    StateStart,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// State returns where the run currently stands.
func (t *Trainer) State() State { return t.state }

// TrainAccuracy returns the training-set accuracy checked by the gate.
// It is zero until the gate has been evaluated.
func (t *Trainer) TrainAccuracy() float64 { return t.trainAccuracy }

// Scores returns the test-split metrics once the model has been scored,
// including for runs the gate later rejected.
func (t *Trainer) Scores() (ClassificationMetricArtifact, bool) {
	if t.scores == nil {
		return ClassificationMetricArtifact{}, false
	}
	return *t.scores, true
}

// FeatureImportance returns the permutation importance of each feature
// column on the test split, or nil when it was not computed.
func (t *Trainer) FeatureImportance() []float64 { return t.importance }

// ProduceModelAndMetrics fits a model on train and scores it on test. The
// final column of both arrays is the label.
func (t *Trainer) ProduceModelAndMetrics(train, test *mat.Dense) (ml.Classifier, ClassificationMetricArtifact, error) {
	if err := checkSplit(train, test); err != nil {
		return nil, ClassificationMetricArtifact{}, apperr.Training("validate datasets", err)
	}

	xTrain, yTrain := arrays.SplitXY(train)
	xTest, yTest := arrays.SplitXY(test)
	log.Debug().
		Int("train_rows", len(yTrain)).
		Int("test_rows", len(yTest)).
		Msg("Split features and labels")

	model := t.newModel(t.config.Params)
	if model == nil {
		return nil, ClassificationMetricArtifact{}, apperr.Training("build model", apperr.Newf("model factory returned nil"))
	}

	log.Info().
		Int("n_estimators", t.config.Params.NEstimators).
		Int("max_depth", t.config.Params.MaxDepth).
		Str("criterion", t.config.Params.Criterion).
		Int64("random_state", t.config.Params.RandomState).
		Msg("Training model")
	if err := model.Fit(xTrain, yTrain); err != nil {
		return nil, ClassificationMetricArtifact{}, apperr.Training("fit model", err)
	}
	log.Info().Msg("Model training completed")

	yPred, err := model.Predict(xTest)
	if err != nil {
		return nil, ClassificationMetricArtifact{}, apperr.Training("predict test split", err)
	}
	report, err := ml.ClassificationReport(yTest, yPred)
	if err != nil {
		return nil, ClassificationMetricArtifact{}, apperr.Training("score test split", err)
	}

	return model, metricArtifact(report), nil
}

// Run executes the workflow and returns the persisted model's artifact.
// Nothing is written to the model path unless the gate accepts the model.
func (t *Trainer) Run() (artifact ModelTrainerArtifact, err error) {
	if t.state != StateStart {
		return ModelTrainerArtifact{}, apperr.Training("start run", apperr.Newf("trainer already ran (state %s)", t.state))
	}

	start := time.Now()
	defer func() {
		t.finish(start, err)
	}()

	log.Info().Msg("Starting model trainer")

	train, err := arrays.Load(t.artifact.TransformedTrainFilePath)
	if err != nil {
		return ModelTrainerArtifact{}, apperr.DataLoad("load train array", err)
	}
	test, err := arrays.Load(t.artifact.TransformedTestFilePath)
	if err != nil {
		return ModelTrainerArtifact{}, apperr.DataLoad("load test array", err)
	}
	if err := checkSplit(train, test); err != nil {
		return ModelTrainerArtifact{}, apperr.DataLoad("validate arrays", err)
	}
	t.state = StateLoaded
	log.Info().
		Str("train", t.artifact.TransformedTrainFilePath).
		Str("test", t.artifact.TransformedTestFilePath).
		Msg("Train and test arrays loaded")

	model, metrics, err := t.ProduceModelAndMetrics(train, test)
	if err != nil {
		return ModelTrainerArtifact{}, err
	}
	t.state = StateTrained
	t.scores = &metrics
	if t.metrics != nil {
		t.metrics.ModelMetricsSet(metrics.Accuracy, metrics.F1, metrics.Precision, metrics.Recall)
	}
	log.Info().
		Float64("accuracy", metrics.Accuracy).
		Float64("f1", metrics.F1).
		Float64("precision", metrics.Precision).
		Float64("recall", metrics.Recall).
		Msg("Model scored on test split")

	xTest, yTest := arrays.SplitXY(test)
	if imp, err := ml.PermutationImportance(model, xTest, yTest, t.config.Params.RandomState); err != nil {
		log.Warn().Err(err).Msg("Failed to compute feature importance")
	} else {
		t.importance = imp
		log.Debug().Floats64("importance", imp).Msg("Permutation feature importance")
	}

	pre, err := preprocess.Load(t.artifact.TransformedObjectFilePath)
	if err != nil {
		return ModelTrainerArtifact{}, apperr.DataLoad("load preprocessing object", err)
	}
	_, cols := train.Dims()
	if pre.Width != cols-1 {
		return ModelTrainerArtifact{}, apperr.DataLoad("load preprocessing object", apperr.Newf(
			"preprocessing object expects %d features, arrays have %d", pre.Width, cols-1))
	}
	log.Info().Str("path", t.artifact.TransformedObjectFilePath).Msg("Preprocessing object loaded")

	// The gate deliberately uses training-set accuracy.
	xTrain, yTrain := arrays.SplitXY(train)
	yTrainPred, err := model.Predict(xTrain)
	if err != nil {
		return ModelTrainerArtifact{}, apperr.Training("predict train split", err)
	}
	t.trainAccuracy, err = ml.Accuracy(yTrain, yTrainPred)
	if err != nil {
		return ModelTrainerArtifact{}, apperr.Training("score train split", err)
	}
	t.state = StateGateChecked
	if t.metrics != nil {
		t.metrics.TrainAccuracySet(t.trainAccuracy)
	}

	if t.trainAccuracy < t.config.ExpectedAccuracy {
		t.state = StateRejected
		log.Info().
			Float64("train_accuracy", t.trainAccuracy).
			Float64("expected_accuracy", t.config.ExpectedAccuracy).
			Msg("No model found with score above the base score")
		return ModelTrainerArtifact{}, apperr.ModelRejected("accuracy gate", apperr.Newf(
			"training accuracy %.4f is below expected accuracy %.4f", t.trainAccuracy, t.config.ExpectedAccuracy))
	}
	t.state = StateAccepted

	log.Info().Msg("Saving new model as performance is better than base score")
	if err := ml.SaveBundle(t.config.TrainedModelFilePath, ml.NewBundle(pre, model)); err != nil {
		return ModelTrainerArtifact{}, apperr.Persist("save model bundle", err)
	}
	t.state = StatePersisted

	artifact = ModelTrainerArtifact{
		TrainedModelFilePath: t.config.TrainedModelFilePath,
		MetricArtifact:       metrics,
	}
	log.Info().
		Str("trained_model_file_path", artifact.TrainedModelFilePath).
		Float64("train_accuracy", t.trainAccuracy).
		Msg("Saved model bundle with preprocessing and trained model")
	return artifact, nil
}

func (t *Trainer) finish(start time.Time, err error) {
	outcome := OutcomeAccepted
	switch {
	case err == nil:
		t.state = StateDone
	case t.state == StateRejected:
		outcome = OutcomeRejected
		t.state = StateFailed
	default:
		outcome = OutcomeFailed
		t.state = StateFailed
	}

	if t.metrics != nil {
		t.metrics.TrainerRunsInc(outcome)
		t.metrics.TrainingDurationObserve(time.Since(start).Seconds())
	}
}

func checkSplit(train, test *mat.Dense) error {
	if train == nil || test == nil {
		return fmt.Errorf("train and test arrays are required")
	}
	tr, tc := train.Dims()
	er, ec := test.Dims()
	if tr == 0 || er == 0 {
		return fmt.Errorf("empty array: train has %d rows, test has %d rows", tr, er)
	}
	if tc < 2 {
		return fmt.Errorf("arrays need at least one feature and a label, got %d columns", tc)
	}
	if tc != ec {
		return fmt.Errorf("train has %d columns, test has %d", tc, ec)
	}
	return nil
}
