package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"showroom/internal/state"
)

// ErrNotFound is returned by ReadSnapshot for an unknown snapshot id.
var ErrNotFound = errors.New("snapshot: not found")

type Snapshotter interface {
	WriteSnapshot(snapshotID string, selection map[string]int) error
}

type Reader interface {
	ReadSnapshot(snapshotID string) (map[string]int, error)
}

// FilesystemSnapshotter lays snapshots out as <baseDir>/<id>/state.json.
type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

func (f *FilesystemSnapshotter) path(snapshotID string) string {
	return filepath.Join(f.baseDir, snapshotID, "state.json")
}

func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, selection map[string]int) error {
	if snapshotID == "" {
		return fmt.Errorf("write snapshot: empty id")
	}
	if err := os.MkdirAll(filepath.Join(f.baseDir, snapshotID), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := state.Encode(selection)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path(snapshotID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (f *FilesystemSnapshotter) ReadSnapshot(snapshotID string) (map[string]int, error) {
	data, err := os.ReadFile(f.path(snapshotID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, snapshotID)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return state.Decode(data)
}
