package prediction

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/ingest"
	"insurance-pipeline/internal/ml"
	"insurance-pipeline/internal/preprocess"
	"insurance-pipeline/internal/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() cfg.Schema {
	return cfg.Schema{
		TargetColumn:    "Response",
		FeatureColumns:  []string{"Vehicle_Damage", "Age"},
		StandardColumns: []string{"Age"},
		CategoryMappings: map[string]map[string]float64{
			"Vehicle_Damage": {"No": 0, "Yes": 1},
		},
	}
}

// customers renders n rows where damaged vehicles respond.
func customers(n int, withTarget bool) string {
	var b strings.Builder
	if withTarget {
		b.WriteString("id,Age,Vehicle_Damage,Response\n")
	} else {
		b.WriteString("id,Age,Vehicle_Damage\n")
	}
	for i := 0; i < n; i++ {
		damage, response := "No", 0
		if i%2 == 0 {
			damage, response = "Yes", 1
		}
		fmt.Fprintf(&b, "%d,%d,%s", i, 20+i%40, damage)
		if withTarget {
			fmt.Fprintf(&b, ",%d", response)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// trainBundle fits a forest on raw customers and saves the bundle.
func trainBundle(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(customers(80, true)), 0o644))
	header, rows, err := ingest.ReadCSV(path)
	require.NoError(t, err)
	raw, err := transform.EncodeFeatures(testSchema(), header, rows)
	require.NoError(t, err)

	y := make([]float64, len(rows))
	for i, row := range rows {
		if row[3] == "1" {
			y[i] = 1
		}
	}

	pre := preprocess.NewColumnTransformer(map[int]preprocess.Step{1: preprocess.StepStandard})
	X, err := pre.FitTransform(raw)
	require.NoError(t, err)
	params := ml.DefaultParams()
	params.NEstimators = 10
	params.MinSamplesSplit = 2
	params.MinSamplesLeaf = 1
	params.MaxFeatures = 2
	rf := ml.NewRandomForest(params)
	require.NoError(t, rf.Fit(X, y))

	modelPath := filepath.Join(dir, "model", "model.gob")
	require.NoError(t, ml.SaveBundle(modelPath, ml.NewBundle(pre, rf)))
	return modelPath
}

func TestPredictorRun(t *testing.T) {
	dir := t.TempDir()
	conf := Config{
		ModelPath:  trainBundle(t, dir),
		InputPath:  filepath.Join(dir, "customers.csv"),
		OutputPath: filepath.Join(dir, "prediction", "predictions.csv"),
		Schema:     testSchema(),
	}
	require.NoError(t, os.WriteFile(conf.InputPath, []byte(customers(10, false)), 0o644))

	artifact, err := New(conf).Run()
	require.NoError(t, err)
	assert.Equal(t, conf.OutputPath, artifact.PredictionFilePath)
	assert.Equal(t, 10, artifact.Rows)
	assert.Equal(t, 5, artifact.Positive)

	header, rows, err := ingest.ReadCSV(artifact.PredictionFilePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Age", "Vehicle_Damage", PredictionColumn}, header)
	require.Len(t, rows, 10)
	for _, row := range rows {
		want := "0"
		if row[2] == "Yes" {
			want = "1"
		}
		assert.Equal(t, want, row[3], "customer %s", row[0])
	}
}

func TestPredictorErrors(t *testing.T) {
	dir := t.TempDir()
	modelPath := trainBundle(t, dir)
	input := filepath.Join(dir, "customers.csv")
	require.NoError(t, os.WriteFile(input, []byte(customers(4, false)), 0o644))
	narrow := filepath.Join(dir, "narrow.csv")
	require.NoError(t, os.WriteFile(narrow, []byte("id,Age\n1,30\n"), 0o644))

	tests := []struct {
		name      string
		modelPath string
		inputPath string
		want      error
	}{
		{"missing bundle", filepath.Join(dir, "nope.gob"), input, apperr.ErrDataLoad},
		{"missing input", modelPath, filepath.Join(dir, "nope.csv"), apperr.ErrDataLoad},
		{"missing feature column", modelPath, narrow, apperr.ErrDataLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "predictions.csv")
			_, err := New(Config{
				ModelPath:  tt.modelPath,
				InputPath:  tt.inputPath,
				OutputPath: out,
				Schema:     testSchema(),
			}).Run()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.NoFileExists(t, out)
		})
	}
}
