package media

import (
	"strings"
)

const (
	ThumbnailEdge    = 500
	ThumbnailQuality = 70
	ThumbnailMime    = "image/jpeg"
)

type Thumbnailer interface {
	Generate(data []byte, mimeType string) ([]byte, error)
}

// JPEGThumbnailer renders thumbnails that fit inside ThumbnailEdge.
type JPEGThumbnailer struct{}

func NewThumbnailer() *JPEGThumbnailer {
	return &JPEGThumbnailer{}
}

func (JPEGThumbnailer) Generate(data []byte, mimeType string) ([]byte, error) {
	if strings.HasPrefix(mimeType, "video/") {
		return Placeholder(), nil
	}

	img, _, err := decode(data)
	if err != nil {
		return nil, err
	}

	return encodeJPEG(resize(img, ThumbnailEdge), ThumbnailQuality)
}
