package codec

import (
	"bytes"
	"image"
	"image/png"
	"io"
)

// PNGCodec reads and writes PNG using Go's standard library. Quality
// is ignored; PNG is lossless.
type PNGCodec struct{}

func (c *PNGCodec) Format() string       { return "png" }
func (c *PNGCodec) Extensions() []string { return []string{"png"} }
func (c *PNGCodec) Available() bool      { return true }

func (c *PNGCodec) Decode(r io.Reader) (image.Image, error) {
	return png.Decode(r)
}

func (c *PNGCodec) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(512 * 1024)

	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
