package imagecodec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestNormalizeBoundsLongestSide(t *testing.T) {
	out, err := Normalize(encodePNG(t, solid(400, 200)), 100)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", out.ContentType)
	assert.Equal(t, 100, out.Width)
	assert.Equal(t, 50, out.Height)
	assert.Equal(t, "image/jpeg", DetectContentType(out.Data))
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	out, err := Normalize(encodeJPEG(t, solid(60, 40)), 1024)
	require.NoError(t, err)
	assert.Equal(t, 60, out.Width)
	assert.Equal(t, 40, out.Height)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize([]byte("definitely not an image"), 100)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEnsurePNG(t *testing.T) {
	pngData := encodePNG(t, solid(10, 10))
	same, err := EnsurePNG(pngData)
	require.NoError(t, err)
	assert.Equal(t, pngData, same)

	converted, err := EnsurePNG(encodeJPEG(t, solid(10, 10)))
	require.NoError(t, err)
	assert.True(t, IsPNG(converted))

	_, err = EnsurePNG([]byte("nope"))
	assert.ErrorIs(t, err, ErrUnsupported)
}
