package sdruntime

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/h2non/filetype"
)

// PNG magic bytes for file identification
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// minPNGSize is signature + IHDR + IEND.
const minPNGSize = 8 + 25 + 12

// Image validation errors
var (
	ErrImageEmpty      = errors.New("sdruntime: image data is empty")
	ErrImageNotPNG     = errors.New("sdruntime: image data is not a valid PNG")
	ErrImageTooSmall   = errors.New("sdruntime: image data too small to be valid")
	ErrImageDecodeFail = errors.New("sdruntime: failed to decode image")
)

// IsPNG checks if the given data starts with PNG magic bytes.
func IsPNG(data []byte) bool {
	if len(data) < len(pngMagic) {
		return false
	}
	return bytes.Equal(data[:len(pngMagic)], pngMagic)
}

// ValidateImageData reports whether data is a complete, decodable PNG.
func ValidateImageData(data []byte) error {
	if len(data) == 0 {
		return ErrImageEmpty
	}
	if len(data) < minPNGSize {
		return ErrImageTooSmall
	}
	if !IsPNG(data) || !filetype.Is(data, "png") {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			return fmt.Errorf("%w: got %s", ErrImageNotPNG, kind.MIME.Value)
		}
		return ErrImageNotPNG
	}

	// Truncated streams pass the magic check; a full decode catches them.
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrImageDecodeFail, err)
	}
	return nil
}

// DecodeBase64Image decodes a base64 image payload. A leading data URL
// header ("data:image/png;base64,") is stripped first.
func DecodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidOutput)
		}
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return data, nil
}
