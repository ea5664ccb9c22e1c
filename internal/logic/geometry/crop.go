package geometry

import (
	"fmt"
	"image"
)

// CropAndScale selects how an image is fitted to a model's fixed input size.
type CropAndScale int

const (
	// CenterCrop scales the shorter side to fit and crops the longer side around the center.
	CenterCrop CropAndScale = iota
	// ScaleFit scales the longer side to fit and pads the rest (letterbox).
	ScaleFit
	// ScaleFill stretches the image to the target size, ignoring aspect ratio.
	ScaleFill
)

func (c CropAndScale) String() string {
	switch c {
	case ScaleFit:
		return "scale_fit"
	case ScaleFill:
		return "scale_fill"
	default:
		return "center_crop"
	}
}

// ParseCropAndScale maps a config string to a CropAndScale option.
func ParseCropAndScale(s string) (CropAndScale, error) {
	switch s {
	case "", "center_crop":
		return CenterCrop, nil
	case "scale_fit":
		return ScaleFit, nil
	case "scale_fill":
		return ScaleFill, nil
	default:
		return CenterCrop, fmt.Errorf("unknown crop_and_scale option %q", s)
	}
}

// CenterCropRect returns the largest rectangle with aspect ratio w:h centered in r.
func CenterCropRect(r image.Rectangle, w, h int) image.Rectangle {
	if w <= 0 || h <= 0 || r.Empty() {
		return r
	}
	rw, rh := r.Dx(), r.Dy()

	// Compare rw/rh with w/h without floating point.
	cw, ch := rw, rh
	if rw*h > rh*w {
		cw = rh * w / h
	} else {
		ch = rw * h / w
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}

	x0 := r.Min.X + (rw-cw)/2
	y0 := r.Min.Y + (rh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// FitRect returns the largest rectangle with the aspect ratio of a srcW×srcH
// image that fits inside dst, centered (letterbox placement).
func FitRect(dst image.Rectangle, srcW, srcH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dst.Empty() {
		return dst
	}
	dw, dh := dst.Dx(), dst.Dy()

	fw, fh := dw, dh
	if srcW*dh > srcH*dw {
		fh = dw * srcH / srcW
	} else {
		fw = dh * srcW / srcH
	}
	if fw < 1 {
		fw = 1
	}
	if fh < 1 {
		fh = 1
	}

	x0 := dst.Min.X + (dw-fw)/2
	y0 := dst.Min.Y + (dh-fh)/2
	return image.Rect(x0, y0, x0+fw, y0+fh)
}
