package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/natya/internal/gesture"
)

// FileSource reads and writes a JSON gesture document.
type FileSource struct {
	Path string
}

type document struct {
	Gestures []*gesture.Gesture `json:"gestures"`
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// LoadGestures implements Source.
func (f *FileSource) LoadGestures(_ context.Context) ([]*gesture.Gesture, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return doc.Gestures, nil
}

// Save writes gestures to the file, replacing it atomically.
func (f *FileSource) Save(gestures []*gesture.Gesture) error {
	data, err := json.MarshalIndent(document{Gestures: gestures}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".catalog-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}
