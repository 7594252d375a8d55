package trainer

import (
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"insurance-pipeline/internal/arrays"
	"insurance-pipeline/internal/ml"
	"insurance-pipeline/internal/preprocess"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu            sync.Mutex
	outcomes      []string
	durations     int
	accuracy      float64
	trainAccuracy float64
}

func (m *MockMetrics) TrainerRunsInc(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *MockMetrics) TrainingDurationObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *MockMetrics) ModelMetricsSet(accuracy, _, _, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy = accuracy
}

func (m *MockMetrics) TrainAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainAccuracy = v
}

// rawFeatures returns n rows of 4 raw features with labels balanced 50/50.
// Label 1 rows are shifted so the classes separate.
func rawFeatures(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 4, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		y[i] = label
		for j := 0; j < 4; j++ {
			X.Set(i, j, rng.NormFloat64()*float64(j+1)+label*3*float64(j+1)+10)
		}
	}
	return X, y
}

// fixture writes transformed train (100x5) and test (20x5) arrays and the
// fitted preprocessing object the way the transformation stage does.
type fixture struct {
	artifact DataTransformationArtifact
	pre      *preprocess.ColumnTransformer
	rawTest  *mat.Dense
	dir      string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	rawTrain, yTrain := rawFeatures(100, 1)
	rawTest, yTest := rawFeatures(20, 2)

	pre := preprocess.NewColumnTransformer(map[int]preprocess.Step{
		0: preprocess.StepStandard,
		1: preprocess.StepStandard,
		2: preprocess.StepMinMax,
	})
	xTrain, err := pre.FitTransform(rawTrain)
	require.NoError(t, err)
	xTest, err := pre.Transform(rawTest)
	require.NoError(t, err)

	train, err := arrays.WithLabels(xTrain, yTrain)
	require.NoError(t, err)
	test, err := arrays.WithLabels(xTest, yTest)
	require.NoError(t, err)

	a := DataTransformationArtifact{
		TransformedTrainFilePath:  filepath.Join(dir, "transformed", "train.npy"),
		TransformedTestFilePath:   filepath.Join(dir, "transformed", "test.npy"),
		TransformedObjectFilePath: filepath.Join(dir, "transformed_object", "preprocessing.gob"),
	}
	require.NoError(t, arrays.Save(a.TransformedTrainFilePath, train))
	require.NoError(t, arrays.Save(a.TransformedTestFilePath, test))
	require.NoError(t, preprocess.SaveObject(a.TransformedObjectFilePath, pre))

	return fixture{artifact: a, pre: pre, rawTest: rawTest, dir: dir}
}

func (f fixture) config(expected float64) Config {
	p := ml.DefaultParams()
	p.NEstimators = 20
	p.RandomState = 42
	return Config{
		Params:               p,
		ExpectedAccuracy:     expected,
		TrainedModelFilePath: filepath.Join(f.dir, "model_trainer", "trained_model", "model.gob"),
	}
}
