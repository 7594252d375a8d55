package ml

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"insurance-pipeline/internal/preprocess"

	"gonum.org/v1/gonum/mat"
)

// Bundle is the deployable model: the fitted preprocessing transform and the
// fitted classifier behind one prediction call. Callers pass raw features.
type Bundle struct {
	Preprocessor preprocess.Transformer
	Model        Classifier
}

// NewBundle takes ownership of pre and model.
func NewBundle(pre preprocess.Transformer, model Classifier) *Bundle {
	return &Bundle{Preprocessor: pre, Model: model}
}

// Predict transforms raw and predicts with the wrapped model.
func (b *Bundle) Predict(raw mat.Matrix) ([]float64, error) {
	X, err := b.Preprocessor.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("preprocess features: %w", err)
	}
	return b.Model.Predict(X)
}

// SaveBundle writes b to path, replacing any existing file. The bundle is
// written to a temp file in the same directory and renamed into place, so a
// failed write never leaves a partial bundle at path.
func SaveBundle(path string, b *Bundle) error {
	if b == nil || b.Preprocessor == nil || b.Model == nil {
		return errors.New("bundle is incomplete")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".bundle-*")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move bundle into place: %w", err)
	}
	return nil
}

// LoadBundle reads a bundle written by SaveBundle.
func LoadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Preprocessor == nil || b.Model == nil {
		return nil, fmt.Errorf("bundle %s is incomplete", path)
	}
	return &b, nil
}
