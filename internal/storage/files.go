// Package storage keeps receipt photographs out-of-line from the ledger
// database: the store holds raw image files keyed by name, the receipt row
// carries only the name.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for image blob operations.
type Storage interface {
	// Save writes data under name and returns the stored name.
	Save(name string, data []byte) (string, error)
	// Get retrieves a blob by name.
	Get(name string) ([]byte, error)
	// Delete removes a blob.
	Delete(name string) error
}

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filepath.Base(name), nil
}

func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.basePath, filepath.Base(name))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
