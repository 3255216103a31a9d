package resolver

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/altglass/imgcache/internal/codec"
	"github.com/altglass/imgcache/internal/geometry"
	"github.com/altglass/imgcache/internal/orient"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	return New(cfg)
}

func fixtureImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fixtureImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, fixtureImage(w, h)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func decodeFile(t *testing.T, path string) (image.Image, string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img, format
}

func TestResolveGeneratesCachedDerivative(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, 800, 600)

	r := newTestResolver(t, Config{PublicRoot: dir})
	pub, err := r.Resolve(TransformRequest{
		SourcePath: src, Width: 400, Height: 400, Mode: geometry.ModeFit,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pub != "/400-400/fit/photo.jpg" {
		t.Errorf("public path = %q", pub)
	}
	if msgs := r.Errors(); len(msgs) != 0 {
		t.Errorf("unexpected errors: %v", msgs)
	}

	fsPath := filepath.Join(dir, "400-400", "fit", "photo.jpg")
	img, format := decodeFile(t, fsPath)
	if format != "jpeg" {
		t.Errorf("derivative format = %q", format)
	}
	b := img.Bounds()
	if b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("fit derivative is %dx%d, want 400x300", b.Dx(), b.Dy())
	}
}

func TestResolveSecondCallIsCacheHit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, 640, 480)

	r := newTestResolver(t, Config{PublicRoot: dir})
	req := TransformRequest{SourcePath: src, Width: 100, Height: 100, Mode: geometry.ModeCrop}

	first, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	// Backdate the derivative; a regeneration would bump the mtime.
	fsPath := filepath.Join(dir, "100-100", "crop", "photo.jpg")
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(fsPath, old, old); err != nil {
		t.Fatal(err)
	}

	second, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if first != second {
		t.Errorf("paths differ: %q vs %q", first, second)
	}
	info, err := os.Stat(fsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(old) {
		t.Error("second resolve regenerated the derivative instead of hitting the cache")
	}
}

func TestResolveCropModes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, 800, 600)

	r := newTestResolver(t, Config{PublicRoot: dir})
	for _, mode := range []geometry.Mode{geometry.ModeCrop, geometry.ModeCropTop, geometry.ModeCropBottom} {
		t.Run(string(mode), func(t *testing.T) {
			pub, err := r.Resolve(TransformRequest{
				SourcePath: src, Width: 200, Height: 200, Mode: mode,
			})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !strings.Contains(pub, "/200-200/"+string(mode)+"/") {
				t.Errorf("public path = %q", pub)
			}
			img, _ := decodeFile(t, filepath.Join(dir, "200-200", string(mode), "photo.png"))
			b := img.Bounds()
			if b.Dx() != 200 || b.Dy() != 200 {
				t.Errorf("%s derivative is %dx%d, want 200x200", mode, b.Dx(), b.Dy())
			}
		})
	}
}

func TestResolveModesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, 500, 500)

	r := newTestResolver(t, Config{PublicRoot: dir})
	crop, err := r.Resolve(TransformRequest{SourcePath: src, Width: 100, Height: 100, Mode: geometry.ModeCrop})
	if err != nil {
		t.Fatal(err)
	}
	fit, err := r.Resolve(TransformRequest{SourcePath: src, Width: 100, Height: 100, Mode: geometry.ModeFit})
	if err != nil {
		t.Fatal(err)
	}
	if crop == fit {
		t.Errorf("crop and fit share the path %q", crop)
	}
}

func TestResolveOutputFormatSwap(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, 300, 300)

	r := newTestResolver(t, Config{PublicRoot: dir})
	pub, err := r.Resolve(TransformRequest{
		SourcePath: src, Width: 50, Height: 50, Mode: geometry.ModeFit, OutputFormat: "png",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pub != "/50-50/fit/photo.png" {
		t.Errorf("public path = %q", pub)
	}
	_, format := decodeFile(t, filepath.Join(dir, "50-50", "fit", "photo.png"))
	if format != "png" {
		t.Errorf("derivative format = %q, want png", format)
	}
}

func TestResolveSVGBypass(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "logo.svg")
	if err := os.WriteFile(src, []byte("<svg xmlns=\"http://www.w3.org/2000/svg\"/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestResolver(t, Config{PublicRoot: dir})
	pub, err := r.Resolve(TransformRequest{
		SourcePath: src, Width: 100, Height: 100, Mode: geometry.ModeCrop,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pub != "/logo.svg" {
		t.Errorf("public path = %q, want the untouched source", pub)
	}
	if _, err := os.Stat(filepath.Join(dir, "100-100")); !os.IsNotExist(err) {
		t.Error("svg bypass must not create cache directories")
	}
}

func TestResolveUnsupportedFallsBackToPlaceholder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.bmp")
	if err := os.WriteFile(src, []byte("BM\x36\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	placeholder := filepath.Join(dir, "error.png")
	writePNG(t, placeholder, 120, 120)

	r := newTestResolver(t, Config{PublicRoot: dir, Placeholder: placeholder})
	pub, err := r.Resolve(TransformRequest{
		SourcePath: src, Width: 60, Height: 60, Mode: geometry.ModeFit,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pub != "/60-60/fit/error.png" {
		t.Errorf("public path = %q, want the placeholder derivative", pub)
	}

	msgs := r.Errors()
	if len(msgs) != 1 {
		t.Fatalf("got %d error messages, want 1: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "not supported") {
		t.Errorf("message %q should mention \"not supported\"", msgs[0])
	}
	// Errors drains.
	if msgs := r.Errors(); len(msgs) != 0 {
		t.Errorf("Errors not drained: %v", msgs)
	}
}

func TestResolveMissingSourceNoPlaceholder(t *testing.T) {
	dir := t.TempDir()
	r := newTestResolver(t, Config{PublicRoot: dir})

	pub, err := r.Resolve(TransformRequest{
		SourcePath: filepath.Join(dir, "gone.jpg"),
		Width:      10, Height: 10, Mode: geometry.ModeFit,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if pub != "" {
		t.Errorf("path = %q, want empty", pub)
	}
	msgs := r.Errors()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "not found") {
		t.Errorf("first message = %q", msgs[0])
	}
}

func TestResolveMissingPlaceholderRecordsFinalError(t *testing.T) {
	dir := t.TempDir()
	r := newTestResolver(t, Config{
		PublicRoot:  dir,
		Placeholder: filepath.Join(dir, "also-gone.png"),
	})

	pub, err := r.Resolve(TransformRequest{
		SourcePath: filepath.Join(dir, "gone.jpg"),
		Width:      10, Height: 10, Mode: geometry.ModeFit,
	})
	if err == nil || pub != "" {
		t.Fatalf("want failure, got %q, %v", pub, err)
	}
	msgs := r.Errors()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want one per attempt: %v", len(msgs), msgs)
	}
}

func TestResolveDirectorySourceRejected(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir.jpg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	r := newTestResolver(t, Config{PublicRoot: dir})
	if _, err := r.Resolve(TransformRequest{
		SourcePath: sub, Width: 10, Height: 10, Mode: geometry.ModeFit,
	}); err == nil {
		t.Fatal("expected error for directory source")
	}
}

func TestResolveUnknownModeIsFatal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, 100, 100)
	placeholder := filepath.Join(dir, "error.png")
	writePNG(t, placeholder, 50, 50)

	r := newTestResolver(t, Config{PublicRoot: dir, Placeholder: placeholder})
	pub, err := r.Resolve(TransformRequest{
		SourcePath: src, Width: 10, Height: 10, Mode: geometry.Mode("zoom"),
	})
	if err == nil || pub != "" {
		t.Fatalf("unknown mode must abort, got %q, %v", pub, err)
	}
	// No placeholder retry for configuration errors.
	if _, statErr := os.Stat(filepath.Join(dir, "10-10")); !os.IsNotExist(statErr) {
		t.Error("fatal mode error still produced cache directories")
	}
}

// exifSegment and taggedJPEG mirror the construction in the orient
// package tests: a one-entry IFD0 carrying the orientation value.
func exifSegment(orientation uint16) []byte {
	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, uint16(42))
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	binary.Write(&tiff, binary.BigEndian, uint16(1))
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	binary.Write(&tiff, binary.BigEndian, uint16(3))
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, orientation)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	seg := []byte{0xFF, 0xE1, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	return append(seg, payload...)
}

func writeTaggedJPEG(t *testing.T, path string, w, h int, orientation uint16) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fixtureImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	out := append([]byte{}, data[:2]...)
	out = append(out, exifSegment(orientation)...)
	out = append(out, data[2:]...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveCorrectsOrientationInPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rotated.jpg")
	writeTaggedJPEG(t, src, 40, 30, 6)

	r := newTestResolver(t, Config{PublicRoot: dir})
	if _, err := r.Resolve(TransformRequest{
		SourcePath: src, Width: 30, Height: 30, Mode: geometry.ModeFit,
	}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// The source was rewritten upright: axes swapped, tag consumed.
	probe, err := codec.Sniff(src)
	if err != nil {
		t.Fatalf("sniff corrected source: %v", err)
	}
	if probe.Width != 30 || probe.Height != 40 {
		t.Errorf("corrected source is %dx%d, want 30x40", probe.Width, probe.Height)
	}
	f, err := os.Open(src)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if tag := orient.Read(f); tag != orient.TagNormal {
		t.Errorf("re-read orientation = %d, want 1", tag)
	}
}

func TestResolveDefaultQuality(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, 200, 200)

	r := newTestResolver(t, Config{PublicRoot: dir, DefaultQuality: 70})
	if _, err := r.Resolve(TransformRequest{
		SourcePath: src, Width: 100, Height: 100, Mode: geometry.ModeFit, Quality: 0,
	}); err != nil {
		t.Fatalf("Resolve with zero quality: %v", err)
	}
}
