package ml

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// PermutationImportance scores each feature column of X by the accuracy the
// fitted model loses when that column is shuffled. Negative drops are
// clamped to zero.
func PermutationImportance(model Classifier, X mat.Matrix, y []float64, seed int64) ([]float64, error) {
	r, c := X.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("X has %d rows but y has %d labels", r, len(y))
	}
	if r == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	pred, err := model.Predict(X)
	if err != nil {
		return nil, err
	}
	baseline, err := Accuracy(y, pred)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	work := mat.DenseCopyOf(X)
	importance := make([]float64, c)
	for j := 0; j < c; j++ {
		original := mat.Col(nil, j, X)
		perm := rng.Perm(r)
		for i, p := range perm {
			work.Set(i, j, original[p])
		}

		pred, err := model.Predict(work)
		if err != nil {
			return nil, err
		}
		score, err := Accuracy(y, pred)
		if err != nil {
			return nil, err
		}
		if drop := baseline - score; drop > 0 {
			importance[j] = drop
		}

		work.SetCol(j, original)
	}
	return importance, nil
}
