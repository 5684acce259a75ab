package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err, "output must be a JPEG")
	return img
}

func defaultRenderOptions() RenderOptions {
	return RenderOptions{MaxDimension: DefaultMaxDimension, Quality: DefaultQuality}
}

func TestRender_Dimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "landscape", w: 800, h: 600, wantW: 400, wantH: 300},
		{name: "portrait", w: 300, h: 1200, wantW: 100, wantH: 400},
		{name: "square", w: 1000, h: 1000, wantW: 400, wantH: 400},
		{name: "already small", w: 120, h: 80, wantW: 120, wantH: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(bytes.NewReader(encodePNG(t, tt.w, tt.h)), defaultRenderOptions())
			require.NoError(t, err)

			b := decodeJPEG(t, out).Bounds()
			assert.Equal(t, tt.wantW, b.Dx())
			assert.Equal(t, tt.wantH, b.Dy())
		})
	}
}

func TestRender_Formats(t *testing.T) {
	src := testImage(64, 48)

	var jpg, gf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, src, nil))
	require.NoError(t, gif.Encode(&gf, src, nil))

	for name, data := range map[string][]byte{
		"jpeg": jpg.Bytes(),
		"png":  encodePNG(t, 64, 48),
		"gif":  gf.Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Render(bytes.NewReader(data), defaultRenderOptions())
			require.NoError(t, err)
			assert.Equal(t, 64, decodeJPEG(t, out).Bounds().Dx())
		})
	}
}

func TestRender_Errors(t *testing.T) {
	t.Run("not an image", func(t *testing.T) {
		_, err := Render(strings.NewReader("definitely not pixels"), defaultRenderOptions())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("source too large", func(t *testing.T) {
		data := encodePNG(t, 200, 200)
		opts := defaultRenderOptions()
		opts.MaxSourceBytes = int64(len(data) - 1)

		_, err := Render(bytes.NewReader(data), opts)
		assert.ErrorIs(t, err, ErrSourceTooLarge)
	})

	t.Run("source exactly at limit", func(t *testing.T) {
		data := encodePNG(t, 20, 20)
		opts := defaultRenderOptions()
		opts.MaxSourceBytes = int64(len(data))

		_, err := Render(bytes.NewReader(data), opts)
		assert.NoError(t, err)
	})
}

func TestRender_AutoOrientWithoutExif(t *testing.T) {
	opts := defaultRenderOptions()
	opts.AutoOrient = true

	out, err := Render(bytes.NewReader(encodePNG(t, 80, 40)), opts)
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 80, b.Dx())
	assert.Equal(t, 40, b.Dy())
}

func TestApplyOrientation(t *testing.T) {
	src := testImage(30, 10)

	tests := []struct {
		orientation int
		swapped     bool
	}{
		{orientation: 0},
		{orientation: 1},
		{orientation: 2},
		{orientation: 3},
		{orientation: 4},
		{orientation: 5, swapped: true},
		{orientation: 6, swapped: true},
		{orientation: 7, swapped: true},
		{orientation: 8, swapped: true},
		{orientation: 42},
	}

	for _, tt := range tests {
		b := applyOrientation(src, tt.orientation).Bounds()
		if tt.swapped {
			assert.Equal(t, image.Pt(10, 30), b.Size(), "orientation %d", tt.orientation)
		} else {
			assert.Equal(t, image.Pt(30, 10), b.Size(), "orientation %d", tt.orientation)
		}
	}
}
