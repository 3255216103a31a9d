// Package codec maps image formats to their decode and encode
// routines. The registry knows four formats (gif, jpeg, png, webp);
// decoding always works for all of them, while encoding availability
// is probed per codec because WebP output shells out to an external
// tool.
package codec

import (
	"fmt"
	"image"
	"io"
	"sort"
	"strings"
)

// Codec handles one image format.
type Codec interface {
	// Format returns the canonical format name ("jpeg", not "jpg").
	Format() string

	// Extensions returns the file extensions, without dot, that map
	// to this format. The first entry is the canonical one.
	Extensions() []string

	// Decode reads a full pixel buffer from r.
	Decode(r io.Reader) (image.Image, error)

	// Encode converts img to bytes at the given quality (1-100).
	Encode(img image.Image, quality int) ([]byte, error)

	// Available reports whether Encode can run. Decoding is always
	// possible for registered formats.
	Available() bool
}

// Registry holds all known codecs.
type Registry struct {
	codecs map[string]Codec
	byExt  map[string]Codec
}

// NewRegistry builds the registry with every codec this package ships.
func NewRegistry() *Registry {
	r := &Registry{
		codecs: make(map[string]Codec),
		byExt:  make(map[string]Codec),
	}
	for _, c := range []Codec{
		&GIFCodec{},
		&JPEGCodec{},
		&PNGCodec{},
		&WebPCodec{},
	} {
		r.codecs[c.Format()] = c
		for _, ext := range c.Extensions() {
			r.byExt[ext] = c
		}
	}
	return r
}

// Get returns the codec for a format name or extension, normalizing
// aliases like "jpg". Nil when the format is unknown.
func (r *Registry) Get(format string) Codec {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if c, ok := r.codecs[format]; ok {
		return c
	}
	return r.byExt[format]
}

// CanEncode reports whether the named format is known and its encoder
// is ready to use.
func (r *Registry) CanEncode(format string) bool {
	c := r.Get(format)
	return c != nil && c.Available()
}

// Formats lists the registered format names, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.codecs))
	for f := range r.codecs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// String summarizes encoder availability, for verbose CLI output.
func (r *Registry) String() string {
	var ready, missing []string
	for _, f := range r.Formats() {
		if r.codecs[f].Available() {
			ready = append(ready, f)
		} else {
			missing = append(missing, f)
		}
	}
	s := fmt.Sprintf("encoders: %s", strings.Join(ready, ", "))
	if len(missing) > 0 {
		s += fmt.Sprintf(" (unavailable: %s)", strings.Join(missing, ", "))
	}
	return s
}
