package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend stores the selection as <dir>/selection-state.json.
type FileBackend struct {
	path string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileBackend{path: filepath.Join(filepath.Clean(dir), SelectionKey+".json")}, nil
}

func (f *FileBackend) Load() (map[string]int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read selection: %w", err)
	}
	return Decode(data)
}

// Save writes to a temp file and renames it over the old one.
func (f *FileBackend) Save(m map[string]int) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename selection: %w", err)
	}
	return nil
}

func (f *FileBackend) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove selection: %w", err)
	}
	return nil
}
