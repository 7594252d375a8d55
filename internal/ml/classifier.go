// Package ml provides the classifiers trained by the pipeline, the binary
// classification metrics used to score them, and the deployable bundle that
// pairs a fitted model with its preprocessing transform.
//
// Models operate on gonum matrices with one example per row. Labels are
// float64 class values; metrics treat 1 as the positive class.
package ml

import (
	"encoding/gob"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Classifier is any model that can be fitted and then predict labels.
type Classifier interface {
	// Fit trains the model on X (one example per row) and labels y.
	Fit(X mat.Matrix, y []float64) error

	// Predict returns one predicted label per row of X.
	Predict(X mat.Matrix) ([]float64, error)
}

// Split criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
	CriterionLogLoss = "log_loss"
)

// Params is the hyperparameter record for tree ensembles. It is passed by
// value and never mutated by the models built from it.
type Params struct {
	NEstimators     int    `yaml:"nEstimators"`
	MinSamplesSplit int    `yaml:"minSamplesSplit"`
	MinSamplesLeaf  int    `yaml:"minSamplesLeaf"`
	MaxDepth        int    `yaml:"maxDepth"` // 0 => unlimited
	Criterion       string `yaml:"criterion"`
	MaxFeatures     int    `yaml:"maxFeatures"` // 0 => sqrt(n_features) for forests, all for single trees
	RandomState     int64  `yaml:"randomState"`
}

// DefaultParams mirrors the usual random forest defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxDepth:        0,
		Criterion:       CriterionGini,
		MaxFeatures:     0,
		RandomState:     0,
	}
}

// Validate checks the hyperparameters are usable.
func (p Params) Validate() error {
	if p.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be at least 1, got %d", p.NEstimators)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2, got %d", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1, got %d", p.MinSamplesLeaf)
	}
	if p.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", p.MaxDepth)
	}
	if p.MaxFeatures < 0 {
		return fmt.Errorf("max_features must not be negative, got %d", p.MaxFeatures)
	}
	if _, err := impurityFunc(p.Criterion); err != nil {
		return err
	}
	return nil
}

func impurityFunc(criterion string) (func(counts []float64, total float64) float64, error) {
	switch strings.ToLower(criterion) {
	case CriterionGini:
		return gini, nil
	case CriterionEntropy, CriterionLogLoss:
		return entropy, nil
	default:
		return nil, fmt.Errorf("unknown criterion %q", criterion)
	}
}

func init() {
	gob.Register(&DecisionTree{})
	gob.Register(&RandomForest{})
}
