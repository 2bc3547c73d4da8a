package expense

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage holds receipt images. Paths returned by Save are opaque keys;
// callers store them on the expense and pass them back to Get and Delete.
type Storage interface {
	// Save saves an image and returns its storage key
	Save(filename string, data []byte) (string, error)

	// Get retrieves an image by storage key
	Get(path string) ([]byte, error)

	// Delete removes an image
	Delete(path string) error
}

// LocalStorage keeps receipt images as flat files in a single directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the image directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// resolve maps a storage key onto the image directory, rejecting keys that
// would escape it.
func (l *LocalStorage) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(l.basePath, key), nil
}

// Save writes an image under its sanitized filename
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := l.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return filename, nil
}

// Get reads an image back by its storage key
func (l *LocalStorage) Get(key string) ([]byte, error) {
	path, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// Delete removes an image by its storage key
func (l *LocalStorage) Delete(key string) error {
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
