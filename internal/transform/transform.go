// Package transform turns the ingested train and test CSV files into the
// numeric arrays and fitted preprocessing object the trainer consumes.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/arrays"
	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/ingest"
	"insurance-pipeline/internal/preprocess"
	"insurance-pipeline/internal/trainer"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

type Config struct {
	TrainPath            string
	TestPath             string
	Schema               cfg.Schema
	TransformedTrainPath string
	TransformedTestPath  string
	ObjectPath           string
}

type Transformer struct {
	config Config
}

func New(config Config) *Transformer {
	return &Transformer{config: config}
}

// Run validates both splits, fits the preprocessing on train and writes the
// transformed arrays with the label as last column.
func (t *Transformer) Run() (trainer.DataTransformationArtifact, error) {
	start := time.Now()
	schema := t.config.Schema

	trainX, trainY, err := t.load(t.config.TrainPath)
	if err != nil {
		return trainer.DataTransformationArtifact{}, err
	}
	testX, testY, err := t.load(t.config.TestPath)
	if err != nil {
		return trainer.DataTransformationArtifact{}, err
	}

	pre := preprocess.NewColumnTransformer(steps(schema))
	xTrain, err := pre.FitTransform(trainX)
	if err != nil {
		return trainer.DataTransformationArtifact{}, apperr.DataLoad("transform.Fit", err)
	}
	xTest, err := pre.Transform(testX)
	if err != nil {
		return trainer.DataTransformationArtifact{}, apperr.DataLoad("transform.Transform", err)
	}

	train, err := arrays.WithLabels(xTrain, trainY)
	if err != nil {
		return trainer.DataTransformationArtifact{}, apperr.DataLoad("transform.Train", err)
	}
	test, err := arrays.WithLabels(xTest, testY)
	if err != nil {
		return trainer.DataTransformationArtifact{}, apperr.DataLoad("transform.Test", err)
	}

	if err := arrays.Save(t.config.TransformedTrainPath, train); err != nil {
		return trainer.DataTransformationArtifact{}, apperr.Persist("transform.SaveTrain", err)
	}
	if err := arrays.Save(t.config.TransformedTestPath, test); err != nil {
		return trainer.DataTransformationArtifact{}, apperr.Persist("transform.SaveTest", err)
	}
	if err := preprocess.SaveObject(t.config.ObjectPath, pre); err != nil {
		return trainer.DataTransformationArtifact{}, apperr.Persist("transform.SaveObject", err)
	}

	trainRows, cols := train.Dims()
	testRows, _ := test.Dims()
	log.Info().
		Int("train_rows", trainRows).
		Int("test_rows", testRows).
		Int("columns", cols).
		Dur("elapsed", time.Since(start)).
		Msg("Data transformation completed")

	return trainer.DataTransformationArtifact{
		TransformedTrainFilePath:  t.config.TransformedTrainPath,
		TransformedTestFilePath:   t.config.TransformedTestPath,
		TransformedObjectFilePath: t.config.ObjectPath,
	}, nil
}

// load reads one split and encodes it as features in schema order plus labels.
func (t *Transformer) load(path string) (*mat.Dense, []float64, error) {
	schema := t.config.Schema

	header, rows, err := ingest.ReadCSV(path)
	if err != nil {
		return nil, nil, apperr.DataLoad("transform.Read", err)
	}
	if len(rows) == 0 {
		return nil, nil, apperr.DataLoad("transform.Read", fmt.Errorf("%s has no rows", path))
	}

	index := columnIndex(header)
	if _, ok := index[schema.TargetColumn]; !ok {
		return nil, nil, apperr.DataLoad("transform.Validate",
			fmt.Errorf("%s is missing columns: %s", path, schema.TargetColumn))
	}
	X, err := EncodeFeatures(schema, header, rows)
	if err != nil {
		return nil, nil, apperr.DataLoad("transform.Encode", fmt.Errorf("%s: %w", path, err))
	}

	y := make([]float64, len(rows))
	for r, row := range rows {
		v, err := encode(schema, schema.TargetColumn, cell(row, index[schema.TargetColumn]))
		if err != nil {
			return nil, nil, apperr.DataLoad("transform.Encode", fmt.Errorf("%s row %d: %w", path, r+1, err))
		}
		y[r] = v
	}
	return X, y, nil
}

// EncodeFeatures builds the raw feature matrix of rows, columns in schema
// order, mapping categorical values. The target column is not required.
func EncodeFeatures(schema cfg.Schema, header []string, rows [][]string) (*mat.Dense, error) {
	index := columnIndex(header)
	var missing []string
	for _, c := range schema.FeatureColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	if len(rows) == 0 || len(schema.FeatureColumns) == 0 {
		return nil, fmt.Errorf("no rows to encode")
	}

	X := mat.NewDense(len(rows), len(schema.FeatureColumns), nil)
	for r, row := range rows {
		for c, name := range schema.FeatureColumns {
			v, err := encode(schema, name, cell(row, index[name]))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r+1, err)
			}
			X.Set(r, c, v)
		}
	}
	return X, nil
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	return index
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func encode(schema cfg.Schema, column, cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if mapping, ok := schema.CategoryMappings[column]; ok {
		v, ok := mapping[cell]
		if !ok {
			return 0, fmt.Errorf("column %s: unknown category %q", column, cell)
		}
		return v, nil
	}
	if cell == "" {
		return 0, fmt.Errorf("column %s: missing value", column)
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	return v, nil
}

func steps(schema cfg.Schema) map[int]preprocess.Step {
	pos := make(map[string]int, len(schema.FeatureColumns))
	for i, c := range schema.FeatureColumns {
		pos[c] = i
	}
	out := make(map[int]preprocess.Step)
	for _, c := range schema.StandardColumns {
		if i, ok := pos[c]; ok {
			out[i] = preprocess.StepStandard
		}
	}
	for _, c := range schema.MinMaxColumns {
		if i, ok := pos[c]; ok {
			out[i] = preprocess.StepMinMax
		}
	}
	return out
}
