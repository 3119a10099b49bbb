package composer

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImagePixels bounds the longest side of an embedded image.
const DefaultMaxImagePixels = 2048

var (
	ErrImageEmpty       = errors.New("composer: image payload is empty")
	ErrImageUnsupported = errors.New("composer: unsupported image format")
	ErrImageDecode      = errors.New("composer: image could not be decoded")
)

var supportedImageTypes = map[string]bool{
	"png":  true,
	"jpg":  true,
	"gif":  true,
	"webp": true,
	"bmp":  true,
}

// decodedImage is a payload normalized to an 8-bit PNG that fpdf accepts.
// width and height are the source dimensions, before any down-sampling.
type decodedImage struct {
	png    []byte
	width  int
	height int
	format string
}

func decodeImage(data []byte, maxPixels int) (*decodedImage, error) {
	if len(data) == 0 {
		return nil, ErrImageEmpty
	}

	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown {
		return nil, fmt.Errorf("%w: unrecognised payload of %d bytes", ErrImageUnsupported, len(data))
	}
	if !supportedImageTypes[kind.Extension] {
		return nil, fmt.Errorf("%w: %s", ErrImageUnsupported, kind.MIME.Value)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageDecode, kind.Extension, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: zero-sized %s image", ErrImageDecode, kind.Extension)
	}

	var out image.Image = img
	if maxPixels > 0 && (b.Dx() > maxPixels || b.Dy() > maxPixels) {
		out = imaging.Fit(img, maxPixels, maxPixels, imaging.Lanczos)
	} else {
		// Re-encoding drops 16-bit depth and interlacing, neither of
		// which fpdf can embed.
		out = imaging.Clone(img)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: re-encode: %v", ErrImageDecode, err)
	}

	return &decodedImage{
		png:    buf.Bytes(),
		width:  b.Dx(),
		height: b.Dy(),
		format: kind.Extension,
	}, nil
}
