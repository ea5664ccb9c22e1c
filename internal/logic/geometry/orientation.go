package geometry

import (
	"image"
	"image/draw"
)

// Orientation is the EXIF orientation tag (1-8): how the stored pixels must
// be transformed to display the image upright.
type Orientation int

const (
	OrientationUp            Orientation = 1 // as stored
	OrientationUpMirrored    Orientation = 2 // flipped horizontally
	OrientationDown          Orientation = 3 // rotated 180°
	OrientationDownMirrored  Orientation = 4 // flipped vertically
	OrientationLeftMirrored  Orientation = 5 // transposed
	OrientationRight         Orientation = 6 // needs 90° clockwise rotation
	OrientationRightMirrored Orientation = 7 // transversed
	OrientationLeft          Orientation = 8 // needs 90° counter-clockwise rotation
)

// Valid reports whether o is one of the eight EXIF values.
func (o Orientation) Valid() bool {
	return o >= OrientationUp && o <= OrientationLeft
}

// SwapsAxes reports whether applying o exchanges width and height.
func (o Orientation) SwapsAxes() bool {
	return o >= OrientationLeftMirrored && o <= OrientationLeft
}

// Apply returns img transformed to display upright.
// Unknown orientations are treated as OrientationUp.
func (o Orientation) Apply(img image.Image) image.Image {
	if !o.Valid() || o == OrientationUp {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if o.SwapsAxes() {
		dw, dh = h, w
	}

	src := toRGBA(img)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			sx, sy := o.source(x, y, w, h)
			si := src.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// source maps destination pixel (x, y) to its source pixel in a w×h image.
func (o Orientation) source(x, y, w, h int) (int, int) {
	switch o {
	case OrientationUpMirrored:
		return w - 1 - x, y
	case OrientationDown:
		return w - 1 - x, h - 1 - y
	case OrientationDownMirrored:
		return x, h - 1 - y
	case OrientationLeftMirrored:
		return y, x
	case OrientationRight:
		return y, h - 1 - x
	case OrientationRightMirrored:
		return w - 1 - y, h - 1 - x
	case OrientationLeft:
		return w - 1 - y, x
	default:
		return x, y
	}
}

// toRGBA returns img as an *image.RGBA whose bounds start at (0, 0).
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
