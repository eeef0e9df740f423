package preprocess

import (
	"math"

	"needle/internal/models"
)

// gaussianKernel returns a normalized 1D kernel truncated at 4 sigma
func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// Blur convolves the image with a separable Gaussian. Samples beyond the
// border repeat the edge pixel. sigma <= 0 returns an unblurred copy.
func Blur(im *models.Image, sigma float64) *models.Image {
	if sigma <= 0 || im.Empty() {
		return im.Clone()
	}

	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	// Horizontal pass
	tmp := models.NewImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		src := im.Row(y)
		dst := tmp.Row(y)
		for x := range dst {
			acc := 0.0
			for k, w := range kernel {
				acc += w * src[clip(x+k-radius, 0, im.Width-1)]
			}
			dst[x] = acc
		}
	}

	// Vertical pass
	out := models.NewImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		dst := out.Row(y)
		for k, w := range kernel {
			src := tmp.Row(clip(y+k-radius, 0, im.Height-1))
			for x := range dst {
				dst[x] += w * src[x]
			}
		}
	}

	return out
}
