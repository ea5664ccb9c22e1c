package classify

import (
	"image"
)

// Tensor converts a size×size image into the model input layout, scaling
// channels to [0, 1] and normalising with meta's mean and std.
func Tensor(img image.Image, meta Metadata) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height
	data := make([]float32, 3*plane)
	nhwc := meta.ChannelsLast()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rgb := [3]float32{float32(r) / 65535.0, float32(g) / 65535.0, float32(bl) / 65535.0}

			pixel := y*width + x
			for c := 0; c < 3; c++ {
				v := (rgb[c] - meta.Mean[c]) / meta.Std[c]
				if nhwc {
					data[pixel*3+c] = v
				} else {
					data[c*plane+pixel] = v
				}
			}
		}
	}
	return data
}
