// Package preprocess isolates the brightest connected object in a frame and
// returns a cropped, denoised region around it.
package preprocess

import (
	"gonum.org/v1/gonum/stat"

	"needle/internal/models"
)

// Threshold marks every pixel brighter than mean + sigma*stddev of the image.
// The standard deviation is the population one. Negative sigma is allowed
// and lowers the cut below the mean.
func Threshold(im *models.Image, sigma float64) *models.Mask {
	mask := models.NewMask(im.Width, im.Height)
	if im.Empty() {
		return mask
	}

	mean, std := stat.PopMeanStdDev(im.Pix, nil)
	cut := mean + sigma*std
	for i, v := range im.Pix {
		mask.Bits[i] = v > cut
	}
	return mask
}
