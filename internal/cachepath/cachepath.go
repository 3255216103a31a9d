// Package cachepath derives the deterministic on-disk location of an
// image derivative and owns the filesystem access behind it. A
// derivative of /pub/img/photo.jpg at 200x100 in crop mode lives at
// /pub/img/200-100/crop/photo.jpg; the path alone is the cache index.
package cachepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CachePath is the resolved location of one derivative. It is a pure
// value: two requests with the same source, size, mode and output
// format always produce the same CachePath.
type CachePath struct {
	Dir          string // directory of the source image
	Stem         string // source filename without extension
	Ext          string // source extension, including the dot
	Width        int
	Height       int
	Mode         string
	OutputFormat string // optional; replaces the extension when set
}

// For derives the cache path for a derivative of sourcePath.
// outputFormat is an extension without dot ("png") or empty to keep
// the source extension.
func For(sourcePath string, width, height int, mode, outputFormat string) CachePath {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	return CachePath{
		Dir:          filepath.Dir(sourcePath),
		Stem:         strings.TrimSuffix(base, ext),
		Ext:          ext,
		Width:        width,
		Height:       height,
		Mode:         mode,
		OutputFormat: outputFormat,
	}
}

// Filename returns the derivative's base name, with the extension
// swapped when an output format was requested.
func (p CachePath) Filename() string {
	if p.OutputFormat != "" {
		return p.Stem + "." + p.OutputFormat
	}
	return p.Stem + p.Ext
}

// SizeDir returns the <width>-<height>/<mode> directory holding the
// derivative.
func (p CachePath) SizeDir() string {
	return filepath.Join(p.Dir, fmt.Sprintf("%d-%d", p.Width, p.Height), p.Mode)
}

// Filesystem returns the absolute on-disk path of the derivative.
func (p CachePath) Filesystem() string {
	return filepath.Join(p.SizeDir(), p.Filename())
}

// Public returns the derivative path relative to the public root, with
// forward slashes and a leading slash. A path outside the root is
// returned as-is.
func (p CachePath) Public(root string) string {
	return PublicPath(root, p.Filesystem())
}

// PublicPath rewrites an absolute filesystem path into its
// public-facing form under root.
func PublicPath(root, fsPath string) string {
	if root == "" {
		return fsPath
	}
	rel, err := filepath.Rel(root, fsPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fsPath
	}
	return "/" + filepath.ToSlash(rel)
}

// EnsureDir creates the size and mode directories. Creation is
// idempotent and tolerates a concurrent caller winning the race; any
// other failure is returned and the caller must treat it as fatal.
// Directories are world-writable so regeneration is not tied to the
// uid that first populated the cache.
func (p CachePath) EnsureDir() error {
	if err := os.MkdirAll(p.SizeDir(), 0o777); err != nil {
		return fmt.Errorf("create cache directory %s: %w", p.SizeDir(), err)
	}
	return nil
}

// Store is the filesystem surface the resolver needs. Splitting it out
// keeps the transform path testable and leaves room for an
// object-store backend.
type Store interface {
	Exists(path string) bool
	ModTime(path string) (time.Time, error)
	Write(path string, data []byte) error
	Delete(path string) error
}

// OSStore is the local-disk Store.
type OSStore struct{}

// Counter for unique temp names when several writers race on one path.
var tempCounter atomic.Int64

func (OSStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (OSStore) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Write lands data at path atomically: a temp file in the same
// directory, then a rename. A reader never observes a torn file, and
// concurrent writers of the same derivative settle on last-writer-wins.
// The final file is world-readable and world-writable.
func (OSStore) Write(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%x-%d.tmp", path, xxhash.Sum64String(path), tempCounter.Add(1))
	if err := os.WriteFile(tmp, data, 0o666); err != nil {
		return err
	}
	// WriteFile perms pass through the umask; force the open bits.
	if err := os.Chmod(tmp, 0o666); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (OSStore) Delete(path string) error {
	return os.Remove(path)
}
