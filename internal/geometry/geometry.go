// Package geometry computes target dimensions and crop rectangles for
// image derivatives. All functions are pure: they take original and
// requested dimensions and return a render plan, never touching pixels
// or the filesystem.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Mode selects the output-shaping strategy.
type Mode string

const (
	// ModeCrop scales the source to cover the target box, then crops
	// the overflow centered on both axes.
	ModeCrop Mode = "crop"
	// ModeCropTop crops with the vertical origin pinned to the top edge.
	ModeCropTop Mode = "crop-top"
	// ModeCropBottom crops with the vertical origin pinned to the bottom edge.
	ModeCropBottom Mode = "crop-bottom"
	// ModeFit scales to fit within the target box, preserving aspect
	// ratio and never upscaling.
	ModeFit Mode = "fit"
	// ModeFitX locks the output width to the target width.
	ModeFitX Mode = "fit-x"
	// ModeFitY locks the output height to the target height.
	ModeFitY Mode = "fit-y"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCrop, ModeCropTop, ModeCropBottom, ModeFit, ModeFitX, ModeFitY:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown resize mode %q", s)
}

// IsCrop reports whether the mode needs a second-phase crop.
func (m Mode) IsCrop() bool {
	return m == ModeCrop || m == ModeCropTop || m == ModeCropBottom
}

// Plan is the computed render geometry for one derivative.
//
// Width and Height are the dimensions of the intermediate resample.
// For crop modes Crop holds the rectangle to cut out of that resample;
// its size is exactly the requested target size. For the fit family
// Crop is nil and Width/Height are the final output dimensions.
type Plan struct {
	Width  int
	Height int
	Crop   *image.Rectangle
}

// Compute derives the render plan for a source of origW×origH pixels
// shaped to targetW×targetH with the given mode. All dimensions must be
// positive. The only error is an unknown mode; geometry itself always
// resolves.
//
// Rounding: scaled candidates round up so that cover-resizes never
// undershoot the crop box. The no-stretch comparisons in fit-x/fit-y
// deliberately round to nearest instead; unifying the two would change
// behavior on sizes that are already correct.
func Compute(origW, origH, targetW, targetH int, mode Mode) (Plan, error) {
	switch mode {
	case ModeFit:
		w, h := fitWithin(origW, origH, targetW, targetH)
		return Plan{Width: w, Height: h}, nil
	case ModeFitX:
		h := roundScale(origH, targetW, origW)
		if origH <= h {
			return Plan{Width: origW, Height: origH}, nil
		}
		return Plan{Width: targetW, Height: h}, nil
	case ModeFitY:
		w := roundScale(origW, targetH, origH)
		if origW <= w {
			return Plan{Width: origW, Height: origH}, nil
		}
		return Plan{Width: w, Height: targetH}, nil
	case ModeCrop, ModeCropTop, ModeCropBottom:
		rw, rh := coverResize(origW, origH, targetW, targetH)
		rect := cropRect(rw, rh, targetW, targetH, mode)
		return Plan{Width: rw, Height: rh, Crop: &rect}, nil
	}
	return Plan{}, fmt.Errorf("unknown resize mode %q", mode)
}

// fitWithin scales (origW, origH) down to fit inside (maxW, maxH).
// A source already inside the box is returned unchanged.
func fitWithin(origW, origH, maxW, maxH int) (int, int) {
	if origW <= maxW && origH <= maxH {
		return origW, origH
	}
	// Width-constrained scale first; use it when the resulting height
	// stays inside the box, otherwise constrain on height.
	h := ceilScale(origH, maxW, origW)
	if h <= maxH {
		return maxW, h
	}
	return ceilScale(origW, maxH, origH), maxH
}

// coverResize scales (origW, origH) up or down so the result fully
// covers (targetW, targetH). The scaling axis follows the source shape:
// wide sources lock height, tall sources lock width, square sources
// take the larger target side. If the chosen scale still leaves an
// axis short of the crop box, the scale locked to that axis wins.
func coverResize(origW, origH, targetW, targetH int) (int, int) {
	var rw, rh int
	switch {
	case origW > origH:
		rh = targetH
		rw = ceilScale(origW, targetH, origH)
	case origH > origW:
		rw = targetW
		rh = ceilScale(origH, targetW, origW)
	default:
		side := targetW
		if targetH > side {
			side = targetH
		}
		rw, rh = side, side
	}
	if rw < targetW {
		rw = targetW
		rh = ceilScale(origH, targetW, origW)
	}
	if rh < targetH {
		rh = targetH
		rw = ceilScale(origW, targetH, origH)
	}
	return rw, rh
}

// cropRect positions a targetW×targetH window inside a render of
// renderW×renderH. Horizontal placement is always centered; vertical
// placement depends on the crop submode.
func cropRect(renderW, renderH, targetW, targetH int, mode Mode) image.Rectangle {
	x := renderW/2 - targetW/2
	var y int
	switch mode {
	case ModeCropTop:
		y = 0
	case ModeCropBottom:
		y = renderH - targetH
	default:
		y = renderH/2 - targetH/2
	}
	return image.Rect(x, y, x+targetW, y+targetH)
}

// ceilScale returns ceil(dim * num / den).
func ceilScale(dim, num, den int) int {
	return int(math.Ceil(float64(dim) * float64(num) / float64(den)))
}

// roundScale returns round(dim * num / den).
func roundScale(dim, num, den int) int {
	return int(math.Round(float64(dim) * float64(num) / float64(den)))
}
