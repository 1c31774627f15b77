// Package imagecodec normalizes user photos before upload and converts them
// to the formats the image edit API accepts.
package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"net/http"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupported is returned for payloads that are not a decodable image.
var ErrUnsupported = errors.New("imagecodec: unsupported image")

const jpegQuality = 90

// Normalized is a re-encoded image.
type Normalized struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Normalize decodes raw, applies EXIF orientation, bounds the longest side to
// maxDimension and re-encodes as JPEG.
func Normalize(raw []byte, maxDimension int) (*Normalized, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if maxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > maxDimension || b.Dy() > maxDimension {
			img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("imagecodec: encode jpeg: %w", err)
	}
	b := img.Bounds()
	return &Normalized{Data: buf.Bytes(), ContentType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// EnsurePNG returns raw unchanged when it already is a PNG and re-encodes it
// otherwise.
func EnsurePNG(raw []byte) ([]byte, error) {
	if IsPNG(raw) {
		return raw, nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imagecodec: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// IsPNG sniffs the PNG signature.
func IsPNG(raw []byte) bool {
	return DetectContentType(raw) == "image/png"
}

// DetectContentType sniffs the image content type of raw.
func DetectContentType(raw []byte) string {
	return http.DetectContentType(raw)
}
