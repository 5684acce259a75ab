package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

var (
	// ErrSourceTooLarge is returned when the source image exceeds
	// RenderOptions.MaxSourceBytes.
	ErrSourceTooLarge = errors.New("source image too large")

	// ErrDecode is returned when the source cannot be decoded as an image.
	ErrDecode = errors.New("cannot decode image")
)

// RenderOptions controls how a single thumbnail is produced.
type RenderOptions struct {
	// MaxDimension bounds both the width and the height of the output.
	MaxDimension int

	// Quality is the JPEG quality, 1 to 100.
	Quality int

	// MaxSourceBytes caps how much of the source is read. Zero means no cap.
	MaxSourceBytes int64

	// AutoOrient applies the EXIF orientation tag before resizing.
	AutoOrient bool
}

// Render decodes the image read from r and returns a JPEG that fits in a
// MaxDimension square, preserving aspect ratio. Images already small enough
// are re-encoded without scaling.
func Render(r io.Reader, opts RenderOptions) ([]byte, error) {
	data, err := readSource(r, opts.MaxSourceBytes)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if opts.AutoOrient {
		img = applyOrientation(img, orientation(data))
	}

	thumb := imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func readSource(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrSourceTooLarge
	}
	return data, nil
}

// orientation returns the EXIF orientation tag, or 1 when absent.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// applyOrientation transforms img according to an EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
