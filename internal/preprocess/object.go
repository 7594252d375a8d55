package preprocess

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// SaveObject gob-encodes v to path, creating parent directories.
func SaveObject(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create object %s: %w", path, err)
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode object %s: %w", path, err)
	}
	return f.Close()
}

// LoadObject gob-decodes the object at path into ptr.
func LoadObject(path string, ptr interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open object %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(ptr); err != nil {
		return fmt.Errorf("decode object %s: %w", path, err)
	}
	return nil
}

// Load reads a fitted ColumnTransformer.
func Load(path string) (*ColumnTransformer, error) {
	var ct ColumnTransformer
	if err := LoadObject(path, &ct); err != nil {
		return nil, err
	}
	if err := ct.Validate(); err != nil {
		return nil, fmt.Errorf("preprocessing object %s: %w", path, err)
	}
	return &ct, nil
}
