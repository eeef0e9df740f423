package orientation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"needle/internal/models"
)

const (
	// minAmplitudeRatio rejects fits weaker than this fraction of the image peak
	minAmplitudeRatio = 0.1

	// maxOvershoot rejects fits whose amplitude exceeds the row peak by this factor
	maxOvershoot = 2.0

	// maxWidthRatio bounds the fitted standard deviation as a fraction of the
	// row width; wider fits have flattened into a constant and lost their center
	maxWidthRatio = 0.5

	// onSignalRatio is the fraction of the row peak the seed center must
	// land on for the previous fit to be reused as a warm start
	onSignalRatio = 0.5
)

// gaussian evaluates A*exp(-(x-x0)^2/(2*sigma))
func gaussian(x, amplitude, sigma, center float64) float64 {
	d := x - center
	return amplitude * math.Exp(-d*d/(2*sigma))
}

// rowProblem is the least-squares fit of one row. Parameters are
// (A, log sigma, x0) with intensities divided by scale.
type rowProblem struct {
	xs    []float64
	row   []float64
	scale float64
}

// each calls fn with the residual, the unit-amplitude Gaussian and the
// offset from the center at every sample
func (p *rowProblem) each(params []float64, fn func(r, e, d float64)) {
	a, sigma, x0 := params[0], math.Exp(params[1]), params[2]
	for i, x := range p.xs {
		e := gaussian(x, 1, sigma, x0)
		fn(a*e-p.row[i]/p.scale, e, x-x0)
	}
}

func (p *rowProblem) Func(params []float64) float64 {
	sum := 0.0
	p.each(params, func(r, _, _ float64) {
		sum += r * r
	})
	return sum
}

func (p *rowProblem) Grad(grad, params []float64) {
	a, sigma := params[0], math.Exp(params[1])
	grad[0], grad[1], grad[2] = 0, 0, 0
	p.each(params, func(r, e, d float64) {
		grad[0] += 2 * r * e
		grad[1] += 2 * r * a * e * d * d / (2 * sigma)
		grad[2] += 2 * r * a * e * d / sigma
	})
}

// fitRow minimizes the squared residuals of row from seed. It returns the
// fitted parameters in image units and whether the optimizer converged.
func fitRow(p *rowProblem, seed models.RowFit) (models.RowFit, bool) {
	problem := optimize.Problem{
		Func: p.Func,
		Grad: p.Grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: 1e-6,
		MajorIterations:   200,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-6,
			Iterations: 3,
		},
	}
	x0 := []float64{seed.Amplitude / p.scale, math.Log(seed.Sigma), seed.Center}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if err != nil || result == nil || result.Status.Early() {
		return models.RowFit{}, false
	}

	return models.RowFit{
		Amplitude: result.X[0] * p.scale,
		Sigma:     math.Exp(result.X[1]),
		Center:    result.X[2],
	}, true
}

// FitRows fits A*exp(-(x-x0)^2/(2*sigma)) to every row of im, top to bottom.
// sigma is a variance-like width. The first row starts from
// (max(im), guessSigma, W/2); every later row starts from the most recent
// valid fit, or from that first guess if no row has been valid yet. A seed
// whose center misses the row's signal is moved onto the row's brightest
// pixel, and a fit that comes out implausible is retried once from there.
//
// A row is marked invalid rather than failing the call when it carries no
// positive signal, the optimizer does not converge, a parameter is not
// finite, the width exceeds half the row, the amplitude is below a tenth of
// the image peak or more than twice the row peak, or the center falls
// outside the row.
func FitRows(im *models.Image, guessSigma float64) []models.RowFit {
	fits := make([]models.RowFit, im.Height)
	if im.Empty() {
		return fits
	}

	peak := im.Max()
	if peak <= 0 {
		return fits
	}

	xs := make([]float64, im.Width)
	for i := range xs {
		xs[i] = float64(i)
	}

	initial := models.RowFit{Amplitude: peak, Sigma: guessSigma, Center: float64(im.Width) / 2}
	seed := initial
	for y := range fits {
		row := im.Row(y)
		rowMax := floats.Max(row)
		if rowMax <= 0 {
			continue
		}

		problem := &rowProblem{xs: xs, row: row, scale: peak}
		local := onRow(seed, row, rowMax, guessSigma)
		fit, ok := fitRow(problem, local)
		if !ok || !plausible(fit, rowMax, peak, im.Width) {
			retry := models.RowFit{Amplitude: rowMax, Sigma: guessSigma, Center: float64(floats.MaxIdx(row))}
			if retry == local {
				continue
			}
			if fit, ok = fitRow(problem, retry); !ok || !plausible(fit, rowMax, peak, im.Width) {
				continue
			}
		}

		fit.Valid = true
		fits[y] = fit
		seed = fit
	}

	return fits
}

// onRow returns seed unchanged when its center lies on the row's signal and
// otherwise recenters it on the brightest pixel
func onRow(seed models.RowFit, row []float64, rowMax, guessSigma float64) models.RowFit {
	i := int(math.Round(seed.Center))
	if i >= 0 && i < len(row) && row[i] >= onSignalRatio*rowMax {
		return seed
	}
	return models.RowFit{Amplitude: rowMax, Sigma: guessSigma, Center: float64(floats.MaxIdx(row))}
}

func plausible(fit models.RowFit, rowMax, peak float64, width int) bool {
	for _, v := range []float64{fit.Amplitude, fit.Sigma, fit.Center} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if fit.Sigma <= 0 || math.Sqrt(fit.Sigma) > maxWidthRatio*float64(width) {
		return false
	}
	if fit.Amplitude < minAmplitudeRatio*peak || fit.Amplitude > maxOvershoot*rowMax {
		return false
	}
	return fit.Center >= 0 && fit.Center <= float64(width-1)
}
