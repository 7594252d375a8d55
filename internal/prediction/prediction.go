// Package prediction scores raw customer rows with the persisted model bundle.
package prediction

import (
	"strconv"
	"time"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/ingest"
	"insurance-pipeline/internal/ml"
	"insurance-pipeline/internal/transform"

	"github.com/rs/zerolog/log"
)

// PredictionColumn is appended to every scored row.
const PredictionColumn = "prediction"

type Config struct {
	ModelPath  string
	InputPath  string
	OutputPath string
	Schema     cfg.Schema
}

type PredictionArtifact struct {
	PredictionFilePath string
	Rows               int
	Positive           int
}

type Predictor struct {
	config Config
}

func New(config Config) *Predictor {
	return &Predictor{config: config}
}

// Run loads the bundle, predicts every row of the input CSV and writes the
// input columns plus the prediction.
func (p *Predictor) Run() (PredictionArtifact, error) {
	start := time.Now()

	bundle, err := ml.LoadBundle(p.config.ModelPath)
	if err != nil {
		return PredictionArtifact{}, apperr.DataLoad("prediction.LoadBundle", err)
	}
	header, rows, err := ingest.ReadCSV(p.config.InputPath)
	if err != nil {
		return PredictionArtifact{}, apperr.DataLoad("prediction.Read", err)
	}
	X, err := transform.EncodeFeatures(p.config.Schema, header, rows)
	if err != nil {
		return PredictionArtifact{}, apperr.DataLoad("prediction.Encode", err)
	}

	pred, err := bundle.Predict(X)
	if err != nil {
		return PredictionArtifact{}, apperr.Training("prediction.Predict", err)
	}

	out := make([][]string, len(rows))
	positive := 0
	for i, row := range rows {
		if pred[i] == 1 {
			positive++
		}
		out[i] = append(append(make([]string, 0, len(row)+1), row...), strconv.FormatFloat(pred[i], 'f', -1, 64))
	}
	if err := ingest.WriteCSV(p.config.OutputPath, append(append([]string{}, header...), PredictionColumn), out); err != nil {
		return PredictionArtifact{}, apperr.Persist("prediction.Write", err)
	}

	log.Info().
		Str("model", p.config.ModelPath).
		Int("rows", len(rows)).
		Int("positive", positive).
		Dur("elapsed", time.Since(start)).
		Msg("Prediction completed")

	return PredictionArtifact{
		PredictionFilePath: p.config.OutputPath,
		Rows:               len(rows),
		Positive:           positive,
	}, nil
}
