// Package arrays reads and writes the numeric 2-D arrays exchanged between
// pipeline stages. Arrays are stored in NumPy .npy format and held in memory
// as gonum dense matrices; by convention the final column is the label.
package arrays

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Load reads a 2-D float64 array with at least one row and two columns.
func Load(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open array %s: %w", path, err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("decode array %s: %w", path, err)
	}

	r, c := m.Dims()
	if r == 0 {
		return nil, fmt.Errorf("array %s has no rows", path)
	}
	if c < 2 {
		return nil, fmt.Errorf("array %s has %d columns, need features and a label", path, c)
	}
	return &m, nil
}

// Save writes m to path, creating parent directories as needed.
func Save(path string, m mat.Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create array dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create array %s: %w", path, err)
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("encode array %s: %w", path, err)
	}
	return f.Close()
}

// SplitXY slices off the final column as the label vector.
// The returned feature matrix shares storage with m.
func SplitXY(m *mat.Dense) (*mat.Dense, []float64) {
	r, c := m.Dims()
	X := m.Slice(0, r, 0, c-1).(*mat.Dense)
	y := mat.Col(nil, c-1, m)
	return X, y
}

// FromRows builds a dense matrix from equal-length rows.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	c := len(rows[0])
	if c == 0 {
		return nil, fmt.Errorf("no columns")
	}
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}

// WithLabels appends y as the final column of X.
func WithLabels(X mat.Matrix, y []float64) (*mat.Dense, error) {
	r, c := X.Dims()
	if len(y) != r {
		return nil, fmt.Errorf("label count %d does not match row count %d", len(y), r)
	}
	out := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(i, j))
		}
		out.Set(i, c, y[i])
	}
	return out, nil
}
