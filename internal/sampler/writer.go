package sampler

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
)

type FrameWriter interface {
	WriteFrame(path string, img image.Image) error
}

// JPEGWriter encodes into a temporary file next to the destination and
// renames it into place, so a failed encode never leaves a partial frame.
type JPEGWriter struct {
	Quality int
}

var _ FrameWriter = JPEGWriter{}

func (w JPEGWriter) WriteFrame(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	quality := w.Quality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: quality}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode frame %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write frame %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move frame into place %s: %w", path, err)
	}
	return nil
}
