package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RandomForest is a bagged ensemble of decision trees. Trees are grown one
// after another from seeds drawn off Params.RandomState, so two fits with the
// same params and data produce identical forests.
type RandomForest struct {
	Params    Params
	Classes   []float64
	NFeatures int
	Trees     []*DecisionTree
}

// NewRandomForest builds an unfitted forest.
func NewRandomForest(p Params) *RandomForest {
	return &RandomForest{Params: p}
}

// Fit grows Params.NEstimators trees, each on a bootstrap sample of X.
func (rf *RandomForest) Fit(X mat.Matrix, y []float64) error {
	if err := rf.Params.Validate(); err != nil {
		return fmt.Errorf("random forest: %w", err)
	}
	data, err := newDataset(X, y)
	if err != nil {
		return fmt.Errorf("random forest: %w", err)
	}

	maxFeatures := rf.Params.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Sqrt(float64(data.nFeatures)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if maxFeatures > data.nFeatures {
		maxFeatures = data.nFeatures
	}

	n := len(y)
	seeds := rand.New(rand.NewSource(rf.Params.RandomState))
	trees := make([]*DecisionTree, rf.Params.NEstimators)
	for i := range trees {
		seed := seeds.Int63()
		rng := rand.New(rand.NewSource(seed))

		samples := make([]int, n)
		for j := range samples {
			samples[j] = rng.Intn(n)
		}

		tree := NewDecisionTree(rf.Params)
		tree.RandomState = seed
		if err := tree.fit(data, samples, rng, maxFeatures); err != nil {
			return fmt.Errorf("random forest: tree %d: %w", i, err)
		}
		trees[i] = tree
	}

	rf.Classes = data.classes
	rf.NFeatures = data.nFeatures
	rf.Trees = trees
	return nil
}

// Predict returns the class with the highest mean tree probability.
func (rf *RandomForest) Predict(X mat.Matrix) ([]float64, error) {
	probs, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = rf.Classes[argmax(p)]
	}
	return out, nil
}

// PredictProba averages the leaf class distributions of all trees.
func (rf *RandomForest) PredictProba(X mat.Matrix) ([][]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("random forest is not fitted")
	}
	r, c := X.Dims()
	if c != rf.NFeatures {
		return nil, fmt.Errorf("random forest fitted on %d features, got %d", rf.NFeatures, c)
	}

	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, len(rf.Classes))
	}
	for _, tree := range rf.Trees {
		probs, err := tree.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for i, p := range probs {
			for k, v := range p {
				out[i][k] += v
			}
		}
	}
	scale := 1 / float64(len(rf.Trees))
	for i := range out {
		for k := range out[i] {
			out[i][k] *= scale
		}
	}
	return out, nil
}
