package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"needle/internal/models"
)

var (
	majorAxisColor = color.NRGBA{R: 255, A: 255}
	minorAxisColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	centerColor    = color.NRGBA{R: 255, G: 160, A: 255}

	// Endpoints of the intensity color map, dark purple to yellow
	colormapLow  = colorful.Color{R: 0.267, G: 0.005, B: 0.329}
	colormapHigh = colorful.Color{R: 0.993, G: 0.906, B: 0.144}
)

// OverlayGamma brightens the faint blurred edges of the ROI before coloring
const OverlayGamma = 1.8

// AxesScale is the integer zoom applied to the ROI before drawing
const AxesScale = 4

// PrincipalAxes renders im through a purple-to-yellow color map and draws
// the estimated orientation through the result's center. With eigenvalues
// in the diagnostics both principal axes are drawn with half-lengths of
// 2*sqrt(eigenvalue); otherwise a single axis spans the image.
func PrincipalAxes(im *models.Image, result models.OrientationResult) (*image.NRGBA, error) {
	if im.Empty() {
		return nil, fmt.Errorf("cannot draw axes on an empty image")
	}

	gray := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	peak := im.Max()
	for y := 0; y < im.Height; y++ {
		for x, v := range im.Row(y) {
			if peak > 0 && v > 0 {
				gray.Pix[y*gray.Stride+x] = uint8(math.Min(v/peak, 1) * 255)
			}
		}
	}

	lifted := adjust.Gamma(gray, OverlayGamma)
	colored := image.NewNRGBA(lifted.Bounds())
	lut := colormap()
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			colored.SetNRGBA(x, y, lut[lifted.RGBAAt(x, y).R])
		}
	}

	canvas := imaging.Resize(colored, im.Width*AxesScale, im.Height*AxesScale, imaging.NearestNeighbor)

	// Pixel centers sit half a pixel in after scaling
	cx := (result.X + 0.5) * AxesScale
	cy := (result.Y + 0.5) * AxesScale

	major := math.Hypot(float64(im.Width), float64(im.Height)) / 2
	minor := 0.0
	if d := result.Diagnostics; d != nil && d.Eigenvalues[0] > 0 {
		major = 2 * math.Sqrt(d.Eigenvalues[0])
		minor = 2 * math.Sqrt(math.Max(d.Eigenvalues[1], 0))
	}

	drawAxis(canvas, cx, cy, result.Angle, major*AxesScale, majorAxisColor)
	if minor > 0 {
		drawAxis(canvas, cx, cy, result.Angle+math.Pi/2, minor*AxesScale, minorAxisColor)
	}
	setPixel(canvas, int(cx), int(cy), centerColor)

	return canvas, nil
}

// colormap returns 256 colors blended in Luv space between the endpoints
func colormap() [256]color.NRGBA {
	var lut [256]color.NRGBA
	for i := range lut {
		r, g, b := colormapLow.BlendLuv(colormapHigh, float64(i)/255).Clamped().RGB255()
		lut[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return lut
}

// drawAxis draws a segment of half-length r through (cx, cy) at angle,
// counter-clockwise from +x with rows growing downward
func drawAxis(img *image.NRGBA, cx, cy, angle, r float64, c color.NRGBA) {
	dx := math.Cos(angle)
	dy := -math.Sin(angle)
	steps := int(math.Ceil(2 * r))
	for i := -steps; i <= steps; i++ {
		t := float64(i) / 2
		setPixel(img, int(math.Round(cx+t*dx)), int(math.Round(cy+t*dy)), c)
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetNRGBA(x, y, c)
	}
}

// SaveAxes writes an overlay produced by PrincipalAxes; the format follows
// the file extension
func SaveAxes(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save axes overlay %s: %w", path, err)
	}
	return nil
}
