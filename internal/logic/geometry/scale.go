package geometry

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// subImager is implemented by every standard library image type.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside r.
func Crop(img image.Image, r image.Rectangle) image.Image {
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// Fit produces a w×h image from img according to option.
// The result always has bounds (0, 0, w, h).
func Fit(img image.Image, w, h int, option CropAndScale) image.Image {
	switch option {
	case ScaleFill:
		return resize.Resize(uint(w), uint(h), img, resize.Bilinear)

	case ScaleFit:
		b := img.Bounds()
		inner := FitRect(image.Rect(0, 0, w, h), b.Dx(), b.Dy())
		scaled := resize.Resize(uint(inner.Dx()), uint(inner.Dy()), img, resize.Bilinear)
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(out, out.Bounds(), image.Black, image.Point{}, draw.Src)
		draw.Draw(out, inner, scaled, scaled.Bounds().Min, draw.Src)
		return out

	default:
		cropped := Crop(img, CenterCropRect(img.Bounds(), w, h))
		return resize.Resize(uint(w), uint(h), cropped, resize.Bilinear)
	}
}
