package images

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
)

// Scratch guards a temporary file for the length of one run.
//
//	s := images.NewScratch(path)
//	defer s.Release()
type Scratch struct {
	Path string
}

func NewScratch(path string) *Scratch {
	return &Scratch{Path: path}
}

// Release removes the file. A missing file is not an error and Release may be
// called more than once.
func (s *Scratch) Release() error {
	err := os.Remove(s.Path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	slog.Warn("Failed to remove temporary image", "path", s.Path, "error", err)
	return err
}
