// Package resolver turns transform requests into cached derivative
// paths. It decides cache hit versus miss, runs orientation correction
// and the geometry plan, dispatches codec work, and applies the
// placeholder fallback policy: a request that cannot be served from
// its source is retried exactly once with the configured placeholder
// image, and every recoverable failure is accumulated on a
// caller-drainable list instead of aborting the call.
package resolver

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"

	"github.com/altglass/imgcache/internal/cachepath"
	"github.com/altglass/imgcache/internal/codec"
	"github.com/altglass/imgcache/internal/geometry"
	"github.com/altglass/imgcache/internal/orient"
)

// ErrUnresolvable reports that neither the source nor the placeholder
// produced a derivative. Resolve returns it with an empty path; the
// accumulated messages say what went wrong.
var ErrUnresolvable = errors.New("image could not be resolved")

// fatalError marks failures that abort the whole resolve instead of
// falling back to the placeholder: cache directory creation and
// misconfigured modes.
type fatalError struct{ err error }

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }

// TransformRequest describes one derivative. It is a plain value
// created per call; the resolver keeps no request state between calls.
type TransformRequest struct {
	SourcePath   string
	Width        int
	Height       int
	Mode         geometry.Mode
	Quality      int    // 1-100; 0 means the resolver default
	OutputFormat string // optional format name; empty keeps the source format
}

// Config configures a Resolver.
type Config struct {
	// PublicRoot maps filesystem paths to public ones. Optional.
	PublicRoot string

	// Placeholder is the image substituted for unreadable or
	// unsupported sources. Optional; without it a failed source is a
	// failed resolve.
	Placeholder string

	// DefaultQuality applies when a request carries quality 0.
	DefaultQuality int

	// Logger receives structured progress and warning logs.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Store overrides the filesystem backend. Defaults to local disk.
	Store cachepath.Store
}

// Resolver is the transform orchestrator. Calls are synchronous and
// run on the caller's goroutine; concurrent Resolve calls for the same
// uncached derivative both do the work and the last write wins.
type Resolver struct {
	cfg    Config
	log    *slog.Logger
	store  cachepath.Store
	codecs *codec.Registry
	errs   []string
}

// New builds a Resolver from cfg, filling unset fields with defaults.
func New(cfg Config) *Resolver {
	if cfg.DefaultQuality <= 0 || cfg.DefaultQuality > 100 {
		cfg.DefaultQuality = codec.DefaultQuality
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = cachepath.OSStore{}
	}
	return &Resolver{
		cfg:    cfg,
		log:    log,
		store:  store,
		codecs: codec.NewRegistry(),
	}
}

// Errors drains the messages accumulated by the last Resolve call.
func (r *Resolver) Errors() []string {
	out := r.errs
	r.errs = nil
	return out
}

// Resolve produces the public path of the derivative described by req,
// generating and caching it on first demand. Recoverable failures
// (missing source, unsupported format, codec errors) fall back to the
// configured placeholder once; their messages are retrievable through
// Errors. The returned error is non-nil only when no path could be
// produced at all, or for fatal cache-directory and configuration
// failures.
func (r *Resolver) Resolve(req TransformRequest) (string, error) {
	r.errs = nil
	if req.Quality <= 0 || req.Quality > 100 {
		req.Quality = r.cfg.DefaultQuality
	}

	sources := []string{req.SourcePath}
	if r.cfg.Placeholder != "" && req.SourcePath != r.cfg.Placeholder {
		sources = append(sources, r.cfg.Placeholder)
	}

	for i, src := range sources {
		path, err := r.attempt(req, src)
		if err == nil {
			return path, nil
		}
		r.errs = append(r.errs, err.Error())
		var fatal fatalError
		if errors.As(err, &fatal) {
			return "", err
		}
		if i == 0 && len(sources) > 1 {
			r.log.Warn("falling back to placeholder",
				"source", src, "error", err.Error())
		}
	}

	if r.cfg.Placeholder == "" {
		r.errs = append(r.errs, "no placeholder image configured")
	}
	return "", ErrUnresolvable
}

// attempt runs the full transform pipeline for one candidate source.
func (r *Resolver) attempt(req TransformRequest, src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("source image not found: %s", src)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source is a directory, not an image: %s", src)
	}

	// Vector sources are size and mode independent; serve them as-is.
	if strings.EqualFold(filepath.Ext(src), ".svg") {
		return cachepath.PublicPath(r.cfg.PublicRoot, src), nil
	}

	outputFormat := normalizeFormat(req.OutputFormat)
	if outputFormat != "" && !r.codecs.CanEncode(outputFormat) {
		return "", fmt.Errorf("output format %q is not supported", req.OutputFormat)
	}

	cp := cachepath.For(src, req.Width, req.Height, string(req.Mode), outputFormat)
	if r.store.Exists(cp.Filesystem()) {
		r.log.Debug("cache hit", "path", cp.Filesystem())
		return cp.Public(r.cfg.PublicRoot), nil
	}

	probe, err := codec.Sniff(src)
	if err != nil {
		return "", fmt.Errorf("image %s is not supported: %v", src, err)
	}
	srcCodec := r.codecs.Get(probe.Format)
	if srcCodec == nil {
		return "", fmt.Errorf("image format %q is not supported", probe.Format)
	}

	img, err := r.decode(srcCodec, src)
	if err != nil {
		return "", fmt.Errorf("decode %s: %v", src, err)
	}

	if probe.Format == "jpeg" {
		img = r.correctOrientation(src, img, req.Quality)
	}

	bounds := img.Bounds()
	plan, err := geometry.Compute(bounds.Dx(), bounds.Dy(), req.Width, req.Height, req.Mode)
	if err != nil {
		return "", fatalError{err}
	}

	// Lanczos resample into a fresh NRGBA buffer; per-pixel alpha
	// survives the copy for transparent sources.
	out := imaging.Resize(img, plan.Width, plan.Height, imaging.Lanczos)
	if plan.Crop != nil {
		out = imaging.Crop(out, *plan.Crop)
	}

	if err := cp.EnsureDir(); err != nil {
		return "", fatalError{err}
	}

	outCodec := srcCodec
	if outputFormat != "" {
		outCodec = r.codecs.Get(outputFormat)
	}
	data, err := outCodec.Encode(out, req.Quality)
	if err != nil {
		return "", fmt.Errorf("encode %s as %s: %v", src, outCodec.Format(), err)
	}
	if err := r.store.Write(cp.Filesystem(), data); err != nil {
		return "", fmt.Errorf("write derivative %s: %v", cp.Filesystem(), err)
	}

	r.log.Info("derivative generated",
		"source", src,
		"path", cp.Filesystem(),
		"size", fmt.Sprintf("%dx%d", out.Bounds().Dx(), out.Bounds().Dy()),
		"mode", string(req.Mode),
		"bytes", len(data),
		"fingerprint", fmt.Sprintf("%016x", xxhash.Sum64(data)),
	)
	return cp.Public(r.cfg.PublicRoot), nil
}

// decode reads the full pixel buffer of src.
func (r *Resolver) decode(c codec.Codec, src string) (img image.Image, err error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Decode(f)
}

// correctOrientation uprights a camera-rotated JPEG and persists the
// corrected pixels back over the source so the work happens once. The
// rewritten file carries no EXIF block, so a later read reports the
// identity tag. A failed persist is logged and the corrected in-memory
// buffer is still used for this request.
func (r *Resolver) correctOrientation(src string, img image.Image, quality int) image.Image {
	f, err := os.Open(src)
	if err != nil {
		return img
	}
	tag := orient.Read(f)
	f.Close()
	if tag == orient.TagNormal {
		return img
	}

	corrected := orient.Apply(img, tag)
	data, err := (&codec.JPEGCodec{}).Encode(corrected, quality)
	if err == nil {
		err = r.store.Write(src, data)
	}
	if err != nil {
		r.log.Warn("could not persist orientation correction",
			"source", src, "tag", int(tag), "error", err.Error())
	} else {
		r.log.Info("orientation corrected", "source", src, "tag", int(tag))
	}
	return corrected
}

// normalizeFormat lowercases a requested output format and strips a
// leading dot so ".JPG" and "jpg" mean the same thing.
func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(format, "."))
}
