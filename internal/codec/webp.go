package codec

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"golang.org/x/image/webp"
)

// Counter for unique temp file names across goroutines.
var webpTempCounter atomic.Int64

// WebPCodec decodes WebP with golang.org/x/image and encodes by
// shelling out to cwebp, which avoids CGO while still producing
// optimized output. Without cwebp on PATH, WebP sources still decode
// but WebP output is reported unavailable.
// Install: brew install webp / apt install webp
type WebPCodec struct {
	once      sync.Once
	available bool
	cwebpPath string
}

func (c *WebPCodec) Format() string       { return "webp" }
func (c *WebPCodec) Extensions() []string { return []string{"webp"} }

func (c *WebPCodec) Available() bool {
	c.once.Do(func() {
		path, err := exec.LookPath("cwebp")
		if err == nil {
			c.available = true
			c.cwebpPath = path
		}
	})
	return c.available
}

func (c *WebPCodec) Decode(r io.Reader) (image.Image, error) {
	return webp.Decode(r)
}

func (c *WebPCodec) Encode(img image.Image, quality int) ([]byte, error) {
	if !c.Available() {
		return nil, fmt.Errorf("cwebp not found in PATH; install with: brew install webp")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	// cwebp reads files, so stage the source as a temp PNG.
	id := webpTempCounter.Add(1)
	srcFile, err := os.CreateTemp("", fmt.Sprintf("imgcache_src_%d_*.png", id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	dstFile, err := os.CreateTemp("", fmt.Sprintf("imgcache_dst_%d_*.webp", id))
	if err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	if err := png.Encode(srcFile, img); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	srcFile.Close()

	cmd := exec.Command(c.cwebpPath,
		"-q", fmt.Sprintf("%d", quality),
		"-m", "6", // compression method (0=fast, 6=best)
		"-mt",
		"-quiet",
		srcPath,
		"-o", dstPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("cwebp: %w: %s", err, string(out))
	}

	return os.ReadFile(dstPath)
}
