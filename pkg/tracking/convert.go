package tracking

import (
	"image"
	"image/color"

	"needle/internal/models"
)

// FromImage converts an image to grayscale intensities in [0, 1]
func FromImage(img image.Image) *models.Image {
	bounds := img.Bounds()
	im := models.NewImage(bounds.Dx(), bounds.Dy())

	for y := 0; y < im.Height; y++ {
		row := im.Row(y)
		for x := range row {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			// Convert 16-bit gray to float64 (0-1 range)
			row[x] = float64(g.Y) / 65535.0
		}
	}

	return im
}

// ToImage converts intensities to a 16-bit grayscale image, stretching the
// image's min..max onto the full range. A flat image maps to black.
func ToImage(im *models.Image) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, im.Width, im.Height))
	if im.Empty() {
		return out
	}

	lo, hi := im.Pix[0], im.Pix[0]
	for _, v := range im.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo

	for y := 0; y < im.Height; y++ {
		for x, v := range im.Row(y) {
			var value uint16
			if span > 0 {
				value = uint16((v-lo)/span*65535.0 + 0.5)
			}
			out.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	return out
}
