// Package interpolation resamples float images.
package interpolation

import (
	"math"

	"needle/internal/models"
)

// edgeTolerance lets samples that land a rounding error outside the image
// still read the border pixel
const edgeTolerance = 1e-6

// Bilinear samples im at the fractional position (x, y). It reports false
// when the position lies outside the pixel grid.
func Bilinear(im *models.Image, x, y float64) (float64, bool) {
	maxX := float64(im.Width - 1)
	maxY := float64(im.Height - 1)
	if im.Empty() || x < -edgeTolerance || y < -edgeTolerance || x > maxX+edgeTolerance || y > maxY+edgeTolerance {
		return 0, false
	}

	x = math.Min(math.Max(x, 0), maxX)
	y = math.Min(math.Max(y, 0), maxY)

	x0 := int(x)
	y0 := int(y)
	x1 := min(x0+1, im.Width-1)
	y1 := min(y0+1, im.Height-1)
	fx := x - float64(x0)
	fy := y - float64(y0)

	top := im.At(x0, y0)*(1-fx) + im.At(x1, y0)*fx
	bottom := im.At(x0, y1)*(1-fx) + im.At(x1, y1)*fx
	return top*(1-fy) + bottom*fy, true
}

// RotatedSize returns the canvas needed to hold a width x height image
// rotated by angle radians
func RotatedSize(width, height int, angle float64) (int, int) {
	c := math.Abs(math.Cos(angle))
	s := math.Abs(math.Sin(angle))
	w := float64(width)*c + float64(height)*s
	h := float64(width)*s + float64(height)*c
	// Trim float noise so exact right angles keep exact sizes
	return int(math.Ceil(w - 1e-9)), int(math.Ceil(h - 1e-9))
}

// Rotate turns im counter-clockwise by angle radians as the image is
// displayed (rows growing downward) about its center. The canvas grows to
// the rotated bounding box and pixels that map outside the source are 0.
func Rotate(im *models.Image, angle float64) *models.Image {
	w, h := RotatedSize(im.Width, im.Height, angle)
	out := models.NewImage(w, h)
	if im.Empty() || out.Empty() {
		return out
	}

	cos, sin := math.Cos(angle), math.Sin(angle)
	cx := float64(im.Width-1) / 2
	cy := float64(im.Height-1) / 2
	ocx := float64(w-1) / 2
	ocy := float64(h-1) / 2

	for y := 0; y < h; y++ {
		dy := float64(y) - ocy
		row := out.Row(y)
		for x := range row {
			dx := float64(x) - ocx
			// Inverse mapping: turn the output offset back by -angle
			sx := cx + dx*cos - dy*sin
			sy := cy + dx*sin + dy*cos
			if v, ok := Bilinear(im, sx, sy); ok {
				row[x] = v
			}
		}
	}

	return out
}
