package validation

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// MediaConstraints defines which uploads count as photos or videos
type MediaConstraints struct {
	// Extensions accepted when content sniffing cannot name the type
	// (HEIC, QuickTime and similar containers).
	FallbackExtensions map[string]string
	MaxSize            int64
}

var DefaultMediaConstraints = MediaConstraints{
	FallbackExtensions: map[string]string{
		".heic": "image/heic",
		".heif": "image/heif",
		".avif": "image/avif",
		".mov":  "video/quicktime",
		".mkv":  "video/x-matroska",
		".3gp":  "video/3gpp",
	},
	MaxSize: 500 << 20, // 500MB
}

// ValidateMedia decides the MIME type of an upload from its first bytes,
// falling back to the extension only when sniffing is inconclusive.
// Anything that is not an image or a video is rejected.
func ValidateMedia(head []byte, filename string, size int64, c MediaConstraints) (string, error) {
	if size > c.MaxSize {
		return "", fmt.Errorf("file too large: maximum size is %d MB", c.MaxSize/(1<<20))
	}
	if size == 0 {
		return "", fmt.Errorf("file is empty")
	}

	// http.DetectContentType reads max 512 bytes to determine MIME type
	detected := http.DetectContentType(head)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	if isMedia(detected) {
		return detected, nil
	}

	if detected == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(filename))
		if mime, ok := c.FallbackExtensions[ext]; ok {
			return mime, nil
		}
	}

	return "", fmt.Errorf("only images and videos are allowed (detected: %s)", detected)
}

func isMedia(mime string) bool {
	return strings.HasPrefix(mime, "image/") || strings.HasPrefix(mime, "video/")
}
