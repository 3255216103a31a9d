package codec

import (
	"fmt"
	"image"
	"os"

	// Register decoders for format sniffing via image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Probe is image metadata obtained without a full decode.
type Probe struct {
	Format string // "gif", "jpeg", "png" or "webp"
	Width  int
	Height int
}

// Sniff reads just enough of the file at path to identify its format
// and dimensions. Formats outside the registered set (BMP, TIFF, plain
// text, ...) return an error; the caller treats that as an unsupported
// source.
func Sniff(path string) (Probe, error) {
	f, err := os.Open(path)
	if err != nil {
		return Probe{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Probe{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return Probe{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
