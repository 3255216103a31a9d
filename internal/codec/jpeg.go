package codec

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
)

// DefaultQuality applies when a caller passes a quality outside 1-100.
const DefaultQuality = 90

// JPEGCodec reads and writes JPEG using Go's standard library.
type JPEGCodec struct{}

func (c *JPEGCodec) Format() string       { return "jpeg" }
func (c *JPEGCodec) Extensions() []string { return []string{"jpeg", "jpg"} }
func (c *JPEGCodec) Available() bool      { return true }

func (c *JPEGCodec) Decode(r io.Reader) (image.Image, error) {
	return jpeg.Decode(r)
}

func (c *JPEGCodec) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	buf.Grow(256 * 1024)

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
