package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// JPEG encodes frames as JPEG at a fixed quality.
type JPEG struct {
	quality int
}

// NewJPEG creates an encoder with the given quality, clamped to 1-100.
func NewJPEG(quality int) *JPEG {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return &JPEG{quality: quality}
}

// Quality returns the configured quality.
func (e *JPEG) Quality() int {
	return e.quality
}

// Encode compresses an image into a JPEG payload.
func (e *JPEG) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(256 * 1024)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
