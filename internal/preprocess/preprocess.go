// Package preprocess provides the fitted feature transform that the
// transformation stage persists and the trained model bundle replays at
// prediction time.
package preprocess

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Transformer maps raw feature rows onto the representation a model was
// trained on.
type Transformer interface {
	Transform(X mat.Matrix) (*mat.Dense, error)
}

// Step names the scaling applied to a single column.
type Step string

const (
	StepPassthrough Step = "passthrough"
	StepStandard    Step = "standard"
	StepMinMax      Step = "minmax"
)

// ColumnTransformer scales each column independently. Columns without an
// explicit step pass through unchanged.
type ColumnTransformer struct {
	Steps  map[int]Step
	Width  int
	Center []float64 // mean for standard, min for minmax, 0 for passthrough
	Scale  []float64 // std for standard, range for minmax, 1 for passthrough
	Fitted bool
}

func init() {
	gob.Register(&ColumnTransformer{})
}

// NewColumnTransformer creates an unfitted transformer.
func NewColumnTransformer(steps map[int]Step) *ColumnTransformer {
	s := make(map[int]Step, len(steps))
	for k, v := range steps {
		s[k] = v
	}
	return &ColumnTransformer{Steps: s}
}

// Fit learns per-column centering and scaling from X.
func (ct *ColumnTransformer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("preprocess: empty input")
	}
	for col, step := range ct.Steps {
		if col < 0 || col >= c {
			return fmt.Errorf("preprocess: step %q targets column %d of %d", step, col, c)
		}
		switch step {
		case StepPassthrough, StepStandard, StepMinMax:
		default:
			return fmt.Errorf("preprocess: unknown step %q for column %d", step, col)
		}
	}

	ct.Width = c
	ct.Center = make([]float64, c)
	ct.Scale = make([]float64, c)
	column := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(column, j, X)
		switch ct.Steps[j] {
		case StepStandard:
			mean, std := meanStd(column)
			ct.Center[j] = mean
			ct.Scale[j] = nonZero(std)
		case StepMinMax:
			lo, hi := minMax(column)
			ct.Center[j] = lo
			ct.Scale[j] = nonZero(hi - lo)
		default:
			ct.Scale[j] = 1
		}
	}
	ct.Fitted = true
	return nil
}

// Transform applies the fitted scaling to X.
func (ct *ColumnTransformer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !ct.Fitted {
		return nil, fmt.Errorf("preprocess: transformer is not fitted")
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, fmt.Errorf("preprocess: empty input")
	}
	if c != ct.Width {
		return nil, fmt.Errorf("preprocess: got %d columns, fitted on %d", c, ct.Width)
	}

	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - ct.Center[j]) / ct.Scale[j]
	}, X)
	return out, nil
}

// Validate reports whether the fitted state is usable by Transform.
func (ct *ColumnTransformer) Validate() error {
	if !ct.Fitted {
		return fmt.Errorf("preprocess: transformer is not fitted")
	}
	if ct.Width <= 0 {
		return fmt.Errorf("preprocess: invalid width %d", ct.Width)
	}
	if len(ct.Center) != ct.Width || len(ct.Scale) != ct.Width {
		return fmt.Errorf("preprocess: fitted on %d columns but has %d centers and %d scales",
			ct.Width, len(ct.Center), len(ct.Scale))
	}
	for j, s := range ct.Scale {
		if s == 0 || math.IsNaN(s) || math.IsNaN(ct.Center[j]) {
			return fmt.Errorf("preprocess: column %d has invalid scaling", j)
		}
	}
	for col := range ct.Steps {
		if col < 0 || col >= ct.Width {
			return fmt.Errorf("preprocess: step targets column %d of %d", col, ct.Width)
		}
	}
	return nil
}

// FitTransform fits on X and returns X transformed.
func (ct *ColumnTransformer) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := ct.Fit(X); err != nil {
		return nil, err
	}
	return ct.Transform(X)
}

// population std, matching the scaler the models were tuned against
func meanStd(xs []float64) (float64, float64) {
	return stat.PopMeanStdDev(xs, nil)
}

func minMax(xs []float64) (float64, float64) {
	return floats.Min(xs), floats.Max(xs)
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
