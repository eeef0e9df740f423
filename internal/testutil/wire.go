// Package testutil renders synthetic wire frames for tests.
package testutil

import (
	"math"
	"math/rand"

	"needle/internal/models"
)

// WireOptions controls how a synthetic wire is drawn
type WireOptions struct {
	// Size is the side length L of the square frame
	Size int

	// Intensity is the value painted inside the wire
	Intensity float64

	// BlurSigma is the Gaussian blur applied after drawing, 0 for none
	BlurSigma float64

	// Noise is the standard deviation of additive Gaussian noise as a
	// fraction of Intensity
	Noise float64

	// Seed drives the noise generator
	Seed int64
}

// DefaultWireOptions returns a 100x100 frame with a blurred, noise-free wire
func DefaultWireOptions() WireOptions {
	return WireOptions{
		Size:      100,
		Intensity: 100,
		BlurSigma: 1,
		Seed:      1,
	}
}

// Wire draws a filled ellipse with semi-axes L/4 and L/24 centered in an
// LxL frame. Its long axis points degrees counter-clockwise from +x as the
// image is displayed, with rows growing downward.
func Wire(degrees float64, opts WireOptions) *models.Image {
	l := opts.Size
	im := models.NewImage(l, l)

	a := float64(l / 4)
	b := float64(l / 24)
	c := float64(l / 2)
	theta := degrees * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	for y := 0; y < l; y++ {
		for x := 0; x < l; x++ {
			dx := float64(x) - c
			dy := float64(y) - c
			// Long axis direction is (cos, -sin) in column/row space
			u := dx*cos - dy*sin
			v := dx*sin + dy*cos
			if (u*u)/(a*a)+(v*v)/(b*b) < 1 {
				im.Set(x, y, opts.Intensity)
			}
		}
	}

	if opts.BlurSigma > 0 {
		im = blur(im, opts.BlurSigma)
	}

	if opts.Noise > 0 {
		rng := rand.New(rand.NewSource(opts.Seed))
		sd := opts.Noise * opts.Intensity
		for i := range im.Pix {
			im.Pix[i] += sd * rng.NormFloat64()
		}
	}

	return im
}

// blur is a plain separable Gaussian with clamped edges
func blur(im *models.Image, sigma float64) *models.Image {
	r := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*r+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - r)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}

	tmp := models.NewImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * im.At(clamp(x+k-r, im.Width-1), y)
			}
			tmp.Set(x, y, acc)
		}
	}

	out := models.NewImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * tmp.At(x, clamp(y+k-r, im.Height-1))
			}
			out.Set(x, y, acc)
		}
	}
	return out
}
