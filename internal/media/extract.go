// Package media extracts metadata from uploads and derives the stored
// renditions and thumbnails.
package media

import (
	"bytes"
	"image"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is what can be learned from the raw bytes of an upload.
type Metadata struct {
	CaptureTime *time.Time
	Width       int
	Height      int
}

type Extractor interface {
	Extract(data []byte, mimeType string) Metadata
}

// ExifExtractor reads EXIF capture time and decodes image dimensions.
// Missing or unreadable metadata is not an error.
type ExifExtractor struct{}

func NewExtractor() *ExifExtractor {
	return &ExifExtractor{}
}

func (ExifExtractor) Extract(data []byte, mimeType string) Metadata {
	var md Metadata
	if !strings.HasPrefix(mimeType, "image/") {
		return md
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		md.Width, md.Height = cfg.Width, cfg.Height
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return md
	}

	// DateTime prefers DateTimeOriginal and falls back to DateTime.
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return md
	}

	t = t.UTC()
	md.CaptureTime = &t
	return md
}
