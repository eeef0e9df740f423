package orientation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"needle/internal/models"
	"needle/pkg/interpolation"
)

// Default aligner parameters
const (
	DefaultGuessSigma    = 3.0
	DefaultMaxIterations = 20
	DefaultTolerance     = 5 * math.Pi / 180
)

// minValidRows is the fewest row fits a line can be regressed through
const minValidRows = 3

// fwhm converts a Gaussian standard deviation to its full width at half maximum
var fwhm = 2 * math.Sqrt(2*math.Ln2)

type alignState int

const (
	fitting alignState = iota
	converged
	failed
)

// Aligner estimates orientation by fitting a Gaussian across every row,
// regressing the fitted centers against the row index and rotating the image
// until that line stands vertical. Its center is the center of the input
// image, not of the object.
type Aligner struct {
	// GuessSigma is the initial Gaussian width for the row fits
	GuessSigma float64

	// MaxIterations is the number of rotations allowed before giving up.
	// Each rotation is followed by a fitting pass, so up to MaxIterations+1
	// passes run; the residual of the last one decides success.
	MaxIterations int

	// Tolerance is the residual angle, in radians, accepted as aligned
	Tolerance float64

	// Rotate turns an image counter-clockwise by an angle in radians
	Rotate func(im *models.Image, angle float64) *models.Image
}

// NewAligner returns an aligner with the default tolerance and bilinear rotation
func NewAligner(guessSigma float64, maxIterations int) *Aligner {
	return &Aligner{
		GuessSigma:    guessSigma,
		MaxIterations: maxIterations,
		Tolerance:     DefaultTolerance,
		Rotate:        interpolation.Rotate,
	}
}

// ResidualAngle regresses the centers of the valid fits against their row
// index and returns the line's tilt away from vertical, in (-pi/2, pi/2].
// The second value is the number of valid rows used.
func ResidualAngle(fits []models.RowFit) (float64, int, error) {
	rows := make([]float64, 0, len(fits))
	centers := make([]float64, 0, len(fits))
	for y, fit := range fits {
		if fit.Valid {
			rows = append(rows, float64(y))
			centers = append(centers, fit.Center)
		}
	}
	if len(rows) < minValidRows {
		return 0, len(rows), &InsufficientFitDataError{Valid: len(rows)}
	}

	// Regress center on row so a vertical line has slope 0 rather than an
	// infinite one; the row-versus-center slope is its reciprocal
	_, dxdrow := stat.LinearRegression(rows, centers, nil, false)
	slope := 1 / dxdrow
	angle := math.Pi/2 - math.Atan(slope)
	if angle > math.Pi/2 {
		angle -= math.Pi
	}
	return angle, len(rows), nil
}

// lyingFlat reports whether the valid fits are, on average, wider at half
// maximum than the number of rows they span
func lyingFlat(fits []models.RowFit) bool {
	first, last := -1, -1
	width, n := 0.0, 0
	for y, fit := range fits {
		if !fit.Valid {
			continue
		}
		if first < 0 {
			first = y
		}
		last = y
		width += fwhm * math.Sqrt(fit.Sigma)
		n++
	}
	if n == 0 {
		return false
	}
	return width/float64(n) > float64(last-first+1)
}

// Align rotates im until its row-fit centers line up vertically and returns
// the accumulated orientation, in [0, pi). A pass whose fits are wider than
// the rows they span turns the image a quarter turn instead of by the
// residual, and counts as one rotation.
func (a *Aligner) Align(im *models.Image) (models.OrientationResult, error) {
	rotate := a.Rotate
	if rotate == nil {
		rotate = interpolation.Rotate
	}

	diag := &models.Diagnostics{}
	current := im
	total := 0.0
	state := fitting

	for state == fitting {
		fits := FitRows(current, a.GuessSigma)
		residual, valid, err := ResidualAngle(fits)
		diag.ValidRows = append(diag.ValidRows, valid)
		if err != nil {
			return models.OrientationResult{}, fmt.Errorf("fitting pass %d: %w", diag.Iterations, err)
		}
		diag.ResidualAngles = append(diag.ResidualAngles, residual)

		// Rows across a near-horizontal object see one wide profile each and
		// their centers say nothing about its tilt; turn it upright first
		flat := lyingFlat(fits)
		step := residual
		if flat {
			step = math.Pi / 2
		}

		switch {
		case !flat && math.Abs(residual) <= a.Tolerance:
			total += residual
			state = converged
		case diag.Iterations >= a.MaxIterations:
			state = failed
		default:
			total += step
			// Always resample the input, never a previous rotation
			current = rotate(im, -total)
			diag.Iterations++
		}
	}

	if state == failed {
		history := make([]float64, len(diag.ResidualAngles))
		copy(history, diag.ResidualAngles)
		return models.OrientationResult{}, &ConvergenceError{
			Iterations: diag.Iterations,
			LastAngle:  history[len(history)-1],
			History:    history,
		}
	}

	angle := math.Mod(total-math.Pi/2, math.Pi)
	if angle < 0 {
		angle += math.Pi
	}

	return models.OrientationResult{
		X:           float64(im.Width) / 2,
		Y:           float64(im.Height) / 2,
		Angle:       angle,
		Diagnostics: diag,
	}, nil
}

// Estimate implements Estimator
func (a *Aligner) Estimate(im *models.Image) (models.OrientationResult, error) {
	return a.Align(im)
}
