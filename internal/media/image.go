package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// decode returns the image in data. Formats without a registered decoder
// (HEIC, RAW) fail here and are stored as uploaded.
func decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// fit returns the size of a w x h box scaled to fit inside maxEdge x maxEdge
// without enlarging it.
func fit(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		nh := h * maxEdge / w
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := w * maxEdge / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}

func resize(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxEdge)
	if w == b.Dx() && h == b.Dy() {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	// JPEG has no alpha; flatten onto white so transparent areas are not black.
	b := img.Bounds()
	flat := image.NewRGBA(b)
	draw.Draw(flat, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, b, img, b.Min, draw.Over)

	var buf bytes.Buffer
	err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

// Placeholder is the thumbnail served for videos and for images the
// decoder cannot read.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 320, 180))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0x2b, G: 0x2d, B: 0x42, A: 0xff}), image.Point{}, draw.Src)

		// play triangle
		for y := 60; y < 120; y++ {
			half := 30 - abs(y-90)
			for x := 140; x < 140+half*2; x++ {
				img.Set(x, y, color.White)
			}
		}

		data, err := encodeJPEG(img, 80)
		if err != nil {
			panic(fmt.Sprintf("failed to render video placeholder: %v", err))
		}
		placeholder = data
	})
	return placeholder
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
