package media

import (
	"log/slog"
	"strings"

	"github.com/lumia-app/lumia/internal/model"
)

// Rendition is the processed form of an upload that gets stored.
type Rendition struct {
	Data     []byte
	MimeType string
	Ext      string
	Width    int
	Height   int
}

type Transcoder interface {
	Process(data []byte, mimeType string, policy model.TierPolicy) (Rendition, error)
}

// TierTranscoder applies a tier's photo caps. Videos are stored as
// uploaded; transcoding them is out of scope.
type TierTranscoder struct{}

func NewTranscoder() *TierTranscoder {
	return &TierTranscoder{}
}

func (TierTranscoder) Process(data []byte, mimeType string, policy model.TierPolicy) (Rendition, error) {
	original := Rendition{Data: data, MimeType: mimeType, Ext: extFor(mimeType)}

	if !strings.HasPrefix(mimeType, "image/") || mimeType == "image/gif" || policy.PreservesOriginal() {
		return original, nil
	}

	img, _, err := decode(data)
	if err != nil {
		slog.Debug("image not decodable, storing original", "mime_type", mimeType, "error", err)
		return original, nil
	}

	resized := resize(img, policy.MaxPhotoEdge)
	out, err := encodeJPEG(resized, policy.CompressionLevel)
	if err != nil {
		return Rendition{}, err
	}

	b := resized.Bounds()
	return Rendition{
		Data:     out,
		MimeType: "image/jpeg",
		Ext:      ".jpg",
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

func extFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	}
	if i := strings.IndexByte(mimeType, '/'); i >= 0 && i+1 < len(mimeType) {
		return "." + mimeType[i+1:]
	}
	return ""
}
