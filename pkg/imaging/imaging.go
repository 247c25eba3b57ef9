package imaging

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// Accepted lists the image types allowed for profile pictures.
var Accepted = []string{"image/jpeg", "image/png"}

// ErrUnsupported is returned for inputs that are not an accepted image type.
var ErrUnsupported = fmt.Errorf("unsupported image type")

// Thumbnail decodes a JPEG or PNG, fits it inside a square of the given
// dimension (never upscaling) and re-encodes it as JPEG.
func Thumbnail(r io.Reader, dimension int) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if mt := mimetype.Detect(raw); !mimetype.EqualsAny(mt.String(), Accepted...) {
		return nil, ErrUnsupported
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = fit(img, dimension)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func fit(img image.Image, dimension int) image.Image {
	if dimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= dimension && b.Dy() <= dimension {
		return img
	}
	return imaging.Fit(img, dimension, dimension, imaging.Lanczos)
}
