package preprocess

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sampleMatrix() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		1, 10, 5,
		2, 20, 5,
		3, 30, 5,
		4, 40, 5,
	})
}

func TestColumnTransformerFitTransform(t *testing.T) {
	ct := NewColumnTransformer(map[int]Step{0: StepStandard, 1: StepMinMax})

	out, err := ct.FitTransform(sampleMatrix())
	require.NoError(t, err)

	// standard: mean 2.5, population std sqrt(1.25)
	assert.InDelta(t, 0.0, mat.Sum(out.ColView(0)), 1e-9)
	assert.InDelta(t, (1-2.5)/1.118033988749895, out.At(0, 0), 1e-9)

	// minmax: [10, 40] -> [0, 1]
	assert.InDelta(t, 0.0, out.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, out.At(3, 1), 1e-12)

	// passthrough
	assert.Equal(t, 5.0, out.At(2, 2))
}

func TestConstantColumnsDoNotDivideByZero(t *testing.T) {
	ct := NewColumnTransformer(map[int]Step{2: StepStandard})
	out, err := ct.FitTransform(sampleMatrix())
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(0, 2))
}

func TestTransformErrors(t *testing.T) {
	ct := NewColumnTransformer(nil)
	_, err := ct.Transform(sampleMatrix())
	assert.Error(t, err, "unfitted transformer must fail")

	require.NoError(t, ct.Fit(sampleMatrix()))
	_, err = ct.Transform(mat.NewDense(1, 2, []float64{1, 2}))
	assert.Error(t, err, "column mismatch must fail")
}

func TestFitRejectsBadSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps map[int]Step
	}{
		{"column out of range", map[int]Step{7: StepStandard}},
		{"unknown step", map[int]Step{0: Step("log")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewColumnTransformer(tt.steps).Fit(sampleMatrix()))
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preprocessing.gob")
	ct := NewColumnTransformer(map[int]Step{0: StepStandard, 1: StepMinMax})
	require.NoError(t, ct.Fit(sampleMatrix()))
	require.NoError(t, SaveObject(path, ct))

	loaded, err := Load(path)
	require.NoError(t, err)

	want, err := ct.Transform(sampleMatrix())
	require.NoError(t, err)
	got, err := loaded.Transform(sampleMatrix())
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestLoadUnfittedObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preprocessing.gob")
	require.NoError(t, SaveObject(path, NewColumnTransformer(map[int]Step{0: StepStandard})))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMalformedObject(t *testing.T) {
	tests := []struct {
		name string
		ct   *ColumnTransformer
	}{
		{"no scaling parameters", &ColumnTransformer{Width: 4, Fitted: true}},
		{"short scale", &ColumnTransformer{Width: 2, Center: []float64{0, 0}, Scale: []float64{1}, Fitted: true}},
		{"zero scale", &ColumnTransformer{Width: 1, Center: []float64{0}, Scale: []float64{0}, Fitted: true}},
		{"zero width", &ColumnTransformer{Fitted: true}},
		{"step out of range", &ColumnTransformer{
			Steps: map[int]Step{3: StepStandard}, Width: 1,
			Center: []float64{0}, Scale: []float64{1}, Fitted: true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "preprocessing.gob")
			require.NoError(t, SaveObject(path, tt.ct))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidateFittedTransformer(t *testing.T) {
	ct := NewColumnTransformer(map[int]Step{0: StepStandard, 1: StepMinMax})
	require.NoError(t, ct.Fit(mat.NewDense(3, 2, []float64{1, 10, 2, 20, 3, 30})))
	assert.NoError(t, ct.Validate())
}

func TestLoadMissingObject(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}
