package codec

import (
	"bytes"
	"image"
	"image/gif"
	"io"
)

// GIFCodec reads and writes GIF using Go's standard library. Output is
// a single frame; animated sources keep only their first frame, which
// is what a resized derivative shows anyway. Palette quantization
// preserves the transparency index.
type GIFCodec struct{}

func (c *GIFCodec) Format() string       { return "gif" }
func (c *GIFCodec) Extensions() []string { return []string{"gif"} }
func (c *GIFCodec) Available() bool      { return true }

func (c *GIFCodec) Decode(r io.Reader) (image.Image, error) {
	return gif.Decode(r)
}

func (c *GIFCodec) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
