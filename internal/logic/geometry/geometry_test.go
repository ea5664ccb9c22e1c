package geometry

import (
	"image"
	"image/color"
	"testing"
)

// marked returns a w×h image with a distinct red value per pixel, so a pixel's
// origin can be recovered after a transform.
func marked(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(y*w + x), A: 255})
		}
	}
	return img
}

func redAt(img image.Image, x, y int) uint8 {
	r, _, _, _ := img.At(x, y).RGBA()
	return uint8(r >> 8)
}

func TestOrientation_Apply(t *testing.T) {
	// Source 3x2:
	//   0 1 2
	//   3 4 5
	src := marked(3, 2)

	cases := []struct {
		o    Orientation
		w, h int
		rows [][]uint8
	}{
		{OrientationUp, 3, 2, [][]uint8{{0, 1, 2}, {3, 4, 5}}},
		{OrientationUpMirrored, 3, 2, [][]uint8{{2, 1, 0}, {5, 4, 3}}},
		{OrientationDown, 3, 2, [][]uint8{{5, 4, 3}, {2, 1, 0}}},
		{OrientationDownMirrored, 3, 2, [][]uint8{{3, 4, 5}, {0, 1, 2}}},
		{OrientationLeftMirrored, 2, 3, [][]uint8{{0, 3}, {1, 4}, {2, 5}}},
		{OrientationRight, 2, 3, [][]uint8{{3, 0}, {4, 1}, {5, 2}}},
		{OrientationRightMirrored, 2, 3, [][]uint8{{5, 2}, {4, 1}, {3, 0}}},
		{OrientationLeft, 2, 3, [][]uint8{{2, 5}, {1, 4}, {0, 3}}},
	}
	for _, tc := range cases {
		got := tc.o.Apply(src)
		b := got.Bounds()
		if b.Dx() != tc.w || b.Dy() != tc.h {
			t.Errorf("orientation %d: size %dx%d, want %dx%d", tc.o, b.Dx(), b.Dy(), tc.w, tc.h)
			continue
		}
		for y, row := range tc.rows {
			for x, want := range row {
				if v := redAt(got, b.Min.X+x, b.Min.Y+y); v != want {
					t.Errorf("orientation %d: pixel (%d,%d) = %d, want %d", tc.o, x, y, v, want)
				}
			}
		}
	}
}

func TestOrientation_InvalidIsIdentity(t *testing.T) {
	src := marked(2, 2)
	for _, o := range []Orientation{0, 9, -1} {
		if got := o.Apply(src); got != image.Image(src) {
			t.Errorf("orientation %d should return the input unchanged", o)
		}
	}
}

func TestOrientation_NonZeroOrigin(t *testing.T) {
	src := marked(4, 4).SubImage(image.Rect(1, 1, 3, 3))
	got := OrientationDown.Apply(src)
	// Sub-image is {5,6},{9,10}; rotated 180° it becomes {10,9},{6,5}.
	if v := redAt(got, 0, 0); v != 10 {
		t.Errorf("pixel (0,0) = %d, want 10", v)
	}
	if v := redAt(got, 1, 1); v != 5 {
		t.Errorf("pixel (1,1) = %d, want 5", v)
	}
}

func TestCenterCropRect(t *testing.T) {
	cases := []struct {
		name string
		r    image.Rectangle
		w, h int
		want image.Rectangle
	}{
		{"landscape_to_square", image.Rect(0, 0, 400, 300), 1, 1, image.Rect(50, 0, 350, 300)},
		{"portrait_to_square", image.Rect(0, 0, 300, 400), 224, 224, image.Rect(0, 50, 300, 350)},
		{"already_square", image.Rect(0, 0, 100, 100), 1, 1, image.Rect(0, 0, 100, 100)},
		{"offset_origin", image.Rect(10, 20, 410, 320), 1, 1, image.Rect(60, 20, 360, 320)},
		{"landscape_to_portrait", image.Rect(0, 0, 1280, 720), 3, 4, image.Rect(370, 0, 910, 720)},
		{"zero_aspect", image.Rect(0, 0, 10, 10), 0, 1, image.Rect(0, 0, 10, 10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CenterCropRect(tc.r, tc.w, tc.h); got != tc.want {
				t.Errorf("CenterCropRect = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFitRect(t *testing.T) {
	cases := []struct {
		name       string
		dst        image.Rectangle
		srcW, srcH int
		want       image.Rectangle
	}{
		{"wide_into_square", image.Rect(0, 0, 224, 224), 400, 200, image.Rect(0, 56, 224, 168)},
		{"tall_into_square", image.Rect(0, 0, 224, 224), 200, 400, image.Rect(56, 0, 168, 224)},
		{"same_aspect", image.Rect(0, 0, 100, 50), 200, 100, image.Rect(0, 0, 100, 50)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FitRect(tc.dst, tc.srcW, tc.srcH); got != tc.want {
				t.Errorf("FitRect = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFit_OutputSize(t *testing.T) {
	src := marked(64, 48)
	for _, opt := range []CropAndScale{CenterCrop, ScaleFit, ScaleFill} {
		got := Fit(src, 32, 32, opt)
		b := got.Bounds()
		if b.Dx() != 32 || b.Dy() != 32 {
			t.Errorf("%v: size %dx%d, want 32x32", opt, b.Dx(), b.Dy())
		}
	}
}

func TestFit_ScaleFitPadsBlack(t *testing.T) {
	white := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for i := range white.Pix {
		white.Pix[i] = 0xFF
	}
	got := Fit(white, 20, 20, ScaleFit)
	// Top rows are padding, middle rows are image.
	if r, _, _, _ := got.At(10, 0).RGBA(); r != 0 {
		t.Errorf("padding pixel red = %d, want 0", r)
	}
	if r, _, _, _ := got.At(10, 10).RGBA(); r == 0 {
		t.Error("center pixel should come from the image, got black")
	}
}

func TestParseCropAndScale(t *testing.T) {
	for _, opt := range []CropAndScale{CenterCrop, ScaleFit, ScaleFill} {
		got, err := ParseCropAndScale(opt.String())
		if err != nil || got != opt {
			t.Errorf("ParseCropAndScale(%q) = %v, %v", opt.String(), got, err)
		}
	}
	if _, err := ParseCropAndScale("stretch"); err == nil {
		t.Error("expected error for unknown option")
	}
}
