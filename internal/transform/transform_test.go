package transform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/arrays"
	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/preprocess"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testSchema() cfg.Schema {
	return cfg.Schema{
		TargetColumn:    "Response",
		FeatureColumns:  []string{"Gender", "Age", "Annual_Premium"},
		StandardColumns: []string{"Age"},
		MinMaxColumns:   []string{"Annual_Premium"},
		CategoryMappings: map[string]map[string]float64{
			"Gender": {"Female": 0, "Male": 1},
		},
	}
}

const trainCSV = `Age,Annual_Premium,Gender,Response,Unused
20,1000,Male,1,x
30,2000,Female,0,y
40,3000,Male,1,z
50,4000,Female,0,w
`

const testCSV = `Age,Annual_Premium,Gender,Response,Unused
35,2500,Male,1,x
45,5000,Female,0,y
`

type paths struct {
	dir  string
	conf Config
}

func setup(t *testing.T, train, test string) paths {
	t.Helper()
	dir := t.TempDir()
	conf := Config{
		TrainPath:            filepath.Join(dir, "ingested", "train.csv"),
		TestPath:             filepath.Join(dir, "ingested", "test.csv"),
		Schema:               testSchema(),
		TransformedTrainPath: filepath.Join(dir, "transformed", "train.npy"),
		TransformedTestPath:  filepath.Join(dir, "transformed", "test.npy"),
		ObjectPath:           filepath.Join(dir, "transformed_object", "preprocessing.gob"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(conf.TrainPath), 0o755))
	require.NoError(t, os.WriteFile(conf.TrainPath, []byte(train), 0o644))
	require.NoError(t, os.WriteFile(conf.TestPath, []byte(test), 0o644))
	return paths{dir: dir, conf: conf}
}

func TestTransformerRun(t *testing.T) {
	p := setup(t, trainCSV, testCSV)

	artifact, err := New(p.conf).Run()
	require.NoError(t, err)
	assert.Equal(t, p.conf.TransformedTrainPath, artifact.TransformedTrainFilePath)
	assert.Equal(t, p.conf.TransformedTestPath, artifact.TransformedTestFilePath)
	assert.Equal(t, p.conf.ObjectPath, artifact.TransformedObjectFilePath)

	train, err := arrays.Load(artifact.TransformedTrainFilePath)
	require.NoError(t, err)
	r, c := train.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)

	// features in schema order, label last
	assert.Equal(t, []float64{1, 0, 1, 0}, mat.Col(nil, 0, train))
	assert.Equal(t, []float64{1, 0, 1, 0}, mat.Col(nil, 3, train))

	// Age standardized: mean 35, population std sqrt(125)
	age := mat.Col(nil, 1, train)
	assert.InDelta(t, 0, age[0]+age[3], 1e-9)
	assert.InDelta(t, -15/11.180339887, age[0], 1e-6)

	// Annual_Premium min-max scaled on train
	assert.InDeltaSlice(t, []float64{0, 1.0 / 3, 2.0 / 3, 1}, mat.Col(nil, 2, train), 1e-9)

	test, err := arrays.Load(artifact.TransformedTestFilePath)
	require.NoError(t, err)
	r, c = test.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)
	// test values are scaled with train statistics
	assert.InDelta(t, 4.0/3, test.At(1, 2), 1e-9)

	pre, err := preprocess.Load(artifact.TransformedObjectFilePath)
	require.NoError(t, err)
	assert.Equal(t, 3, pre.Width)
}

func TestTransformerErrors(t *testing.T) {
	tests := []struct {
		name    string
		train   string
		test    string
		wantMsg string
	}{
		{
			name:    "missing column",
			train:   "Age,Gender,Response\n20,Male,1\n",
			test:    testCSV,
			wantMsg: "missing columns: Annual_Premium",
		},
		{
			name:    "unknown category",
			train:   trainCSV,
			test:    "Age,Annual_Premium,Gender,Response\n35,2500,Other,1\n",
			wantMsg: `unknown category "Other"`,
		},
		{
			name:    "missing value",
			train:   "Age,Annual_Premium,Gender,Response\n,1000,Male,1\n",
			test:    testCSV,
			wantMsg: "missing value",
		},
		{
			name:    "non numeric value",
			train:   "Age,Annual_Premium,Gender,Response\nold,1000,Male,1\n",
			test:    testCSV,
			wantMsg: "column Age",
		},
		{
			name:    "header only",
			train:   "Age,Annual_Premium,Gender,Response\n",
			test:    testCSV,
			wantMsg: "has no rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := setup(t, tt.train, tt.test)

			_, err := New(p.conf).Run()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrDataLoad)
			assert.True(t, strings.Contains(err.Error(), tt.wantMsg), err.Error())
			assert.NoFileExists(t, p.conf.TransformedTrainPath)
		})
	}
}

func TestTransformerMissingFile(t *testing.T) {
	p := setup(t, trainCSV, testCSV)
	p.conf.TestPath = filepath.Join(p.dir, "nope.csv")

	_, err := New(p.conf).Run()
	assert.ErrorIs(t, err, apperr.ErrDataLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeFeaturesWithoutTarget(t *testing.T) {
	header := []string{"Gender", "Annual_Premium", "Age"}
	rows := [][]string{{"Male", "1000", "20"}, {" Female ", "2000", "30"}}

	X, err := EncodeFeatures(testSchema(), header, rows)
	require.NoError(t, err)
	// schema order: Gender, Age, Annual_Premium
	assert.Equal(t, []float64{1, 20, 1000}, mat.Row(nil, 0, X))
	assert.Equal(t, []float64{0, 30, 2000}, mat.Row(nil, 1, X))

	_, err = EncodeFeatures(testSchema(), []string{"Gender", "Age"}, rows)
	assert.ErrorContains(t, err, "missing columns: Annual_Premium")

	_, err = EncodeFeatures(testSchema(), header, nil)
	assert.Error(t, err)
}

func TestSteps(t *testing.T) {
	got := steps(testSchema())
	assert.Equal(t, map[int]preprocess.Step{1: preprocess.StepStandard, 2: preprocess.StepMinMax}, got)
}
