package storage

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/bdougie/vision/internal/models"
)

// FrameStore owns the scratch directory that holds sampled frames for a run
type FrameStore struct {
	dir string
}

// NewFrameStore creates a frame store rooted at dir. Nothing is touched on
// disk until Reset is called.
func NewFrameStore(dir string) *FrameStore {
	return &FrameStore{dir: dir}
}

// Dir returns the scratch directory
func (s *FrameStore) Dir() string {
	return s.dir
}

// Reset removes everything from the scratch directory, creating it if needed
func (s *FrameStore) Reset() error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return &models.StorageError{Op: "create", Path: s.dir, Err: err}
		}
		return nil
	}
	if err != nil {
		return &models.StorageError{Op: "list", Path: s.dir, Err: err}
	}

	for _, entry := range entries {
		path := filepath.Join(s.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return &models.StorageError{Op: "clear", Path: path, Err: err}
		}
	}
	return nil
}

// FrameName returns the file name used for the frame at the given source
// position. Positions are zero-padded so names sort in source order.
func FrameName(index int) string {
	return fmt.Sprintf("frame_%06d.png", index)
}

// Save writes one frame as PNG and returns its path. Opaque images are
// written as 3-channel RGB.
func (s *FrameStore) Save(img image.Image, index int) (string, error) {
	path := filepath.Join(s.dir, FrameName(index))
	if err := imaging.Save(img, path); err != nil {
		return "", &models.StorageError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}
