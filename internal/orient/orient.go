// Package orient reads the EXIF orientation tag from JPEG streams and
// normalizes pixel data to upright display. Reading never fails: any
// malformed or absent metadata reports the identity tag.
package orient

import (
	"encoding/binary"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// Tag is an EXIF orientation value, 1 through 8.
type Tag int

const (
	// TagNormal means the pixel data is already upright.
	TagNormal Tag = 1
)

// Valid reports whether t is inside the EXIF orientation enumeration.
func (t Tag) Valid() bool { return t >= 1 && t <= 8 }

// correction maps a tag to the counter-clockwise rotation and optional
// horizontal mirror that uprights it. Rotation runs first, then the
// mirror traverses the result right to left.
var correction = map[Tag]struct {
	rotate int // degrees CCW: 0, 90, 180 or 270
	mirror bool
}{
	2: {0, true},
	3: {180, false},
	4: {180, true},
	5: {270, true},
	6: {270, false},
	7: {90, true},
	8: {90, false},
}

// Apply returns img corrected for the given orientation tag. Tag 1 (and
// anything outside the enumeration) returns img untouched. The result
// of a correcting tag is always a fresh NRGBA buffer.
func Apply(img image.Image, t Tag) image.Image {
	c, ok := correction[t]
	if !ok {
		return img
	}
	out := img
	switch c.rotate {
	case 90:
		out = imaging.Rotate90(out)
	case 180:
		out = imaging.Rotate180(out)
	case 270:
		out = imaging.Rotate270(out)
	}
	if c.mirror {
		out = imaging.FlipH(out)
	}
	return out
}

const (
	markerSOI      = 0xD8
	markerAPP1     = 0xE1
	markerSOS      = 0xDA
	tagOrientation = 0x0112
)

// Read scans a JPEG stream for the EXIF orientation tag. It walks the
// segment list up to the start-of-scan marker and parses only IFD0 of
// the embedded TIFF structure. Non-JPEG input, missing EXIF or any
// truncation yields TagNormal.
func Read(r io.ReadSeeker) Tag {
	var soi [2]byte
	if _, err := io.ReadFull(r, soi[:]); err != nil || soi[0] != 0xFF || soi[1] != markerSOI {
		return TagNormal
	}

	for {
		var hdr [2]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil || hdr[0] != 0xFF {
			return TagNormal
		}
		for hdr[1] == 0xFF { // fill bytes before a marker
			if _, err := io.ReadFull(r, hdr[1:]); err != nil {
				return TagNormal
			}
		}
		if hdr[1] == markerSOS {
			return TagNormal // entropy-coded data from here on
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return TagNormal
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf[:])) - 2
		if segLen < 0 {
			return TagNormal
		}

		if hdr[1] != markerAPP1 {
			if _, err := r.Seek(int64(segLen), io.SeekCurrent); err != nil {
				return TagNormal
			}
			continue
		}

		seg := make([]byte, segLen)
		if _, err := io.ReadFull(r, seg); err != nil {
			return TagNormal
		}
		return parseExif(seg)
	}
}

// parseExif extracts the orientation tag from an APP1 payload.
func parseExif(seg []byte) Tag {
	if len(seg) < 14 || string(seg[:6]) != "Exif\x00\x00" {
		return TagNormal
	}
	tiff := seg[6:]

	var bo binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return TagNormal
	}
	if bo.Uint16(tiff[2:4]) != 42 {
		return TagNormal
	}

	ifd := int(bo.Uint32(tiff[4:8]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return TagNormal
	}
	count := int(bo.Uint16(tiff[ifd : ifd+2]))
	ifd += 2

	for i := 0; i < count; i++ {
		entry := ifd + i*12
		if entry+12 > len(tiff) {
			break
		}
		if bo.Uint16(tiff[entry:entry+2]) != tagOrientation {
			continue
		}
		if bo.Uint16(tiff[entry+2:entry+4]) != 3 { // SHORT
			return TagNormal
		}
		t := Tag(bo.Uint16(tiff[entry+8 : entry+10]))
		if t.Valid() {
			return t
		}
		return TagNormal
	}
	return TagNormal
}
