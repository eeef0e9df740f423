package orientation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"needle/internal/models"
	"needle/internal/testutil"
	"needle/pkg/config"
	"needle/pkg/interpolation"
	"needle/pkg/preprocess"
)

var firstQuadrant = []float64{1, 10, 30, 50, 80, 89}

// angleDiff returns the distance in degrees between two orientations modulo 180
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 180)
	if d < 0 {
		d += 180
	}
	return math.Min(d, 180-d)
}

// preparedWire renders a wire at degrees and runs the default preprocessing
func preparedWire(t *testing.T, degrees, noise float64) *models.Image {
	t.Helper()
	opts := testutil.DefaultWireOptions()
	opts.Noise = noise
	_, im, err := preprocess.Preprocess(testutil.Wire(degrees, opts), preprocess.DefaultOptions())
	require.NoError(t, err)
	return im
}

func TestCovariance_SyntheticWires(t *testing.T) {
	for _, noise := range []float64{0, 0.01} {
		for _, degrees := range firstQuadrant {
			result, err := Covariance{}.Estimate(preparedWire(t, degrees, noise))
			require.NoError(t, err)
			assert.LessOrEqual(t, angleDiff(result.Degrees(), degrees), 2.0,
				"noise %.2f: expected %.0f°, got %.2f°", noise, degrees, result.Degrees())
		}
	}
}

func TestCovariance_RawFrame(t *testing.T) {
	result, err := Covariance{}.Estimate(testutil.Wire(30, testutil.DefaultWireOptions()))
	require.NoError(t, err)

	assert.LessOrEqual(t, angleDiff(result.Degrees(), 30), 1.0)
	// The wire is centered in the frame
	assert.InDelta(t, 50, result.X, 0.5)
	assert.InDelta(t, 50, result.Y, 0.5)

	require.NotNil(t, result.Diagnostics)
	assert.Greater(t, result.Diagnostics.Eigenvalues[0], result.Diagnostics.Eigenvalues[1])
	assert.Equal(t, result.Diagnostics.Covariance[0][1], result.Diagnostics.Covariance[1][0])
}

func TestCovariance_AngleRange(t *testing.T) {
	for degrees := 0.0; degrees < 360; degrees += 15 {
		result, err := Covariance{}.Estimate(testutil.Wire(degrees, testutil.DefaultWireOptions()))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Angle, 0.0, "wire at %.0f°", degrees)
		assert.Less(t, result.Angle, math.Pi, "wire at %.0f°", degrees)
		assert.LessOrEqual(t, angleDiff(result.Degrees(), degrees), 1.0, "wire at %.0f°", degrees)
	}
}

func TestCovariance_ScaleInvariant(t *testing.T) {
	im := preparedWire(t, 37, 0)

	base, err := Covariance{}.Estimate(im)
	require.NoError(t, err)

	for _, k := range []float64{0.01, 3, 250} {
		scaled, err := Covariance{}.Estimate(im.Scale(k))
		require.NoError(t, err)
		assert.InDelta(t, base.Angle, scaled.Angle, 1e-9)
		assert.InDelta(t, base.X, scaled.X, 1e-9)
		assert.InDelta(t, base.Y, scaled.Y, 1e-9)
	}
}

func TestCovariance_RotationEquivariance(t *testing.T) {
	im := testutil.Wire(20, testutil.DefaultWireOptions())

	base, err := Covariance{}.Estimate(im)
	require.NoError(t, err)

	for _, turn := range []float64{15, 40, 90} {
		rotated, err := Covariance{}.Estimate(interpolation.Rotate(im, turn*math.Pi/180))
		require.NoError(t, err)
		assert.LessOrEqual(t, angleDiff(rotated.Degrees(), base.Degrees()+turn), 1.0,
			"rotated by %.0f°", turn)
	}
}

func TestCovariance_Axes(t *testing.T) {
	horizontal := models.NewImage(9, 9)
	vertical := models.NewImage(9, 9)
	for i := 2; i <= 6; i++ {
		horizontal.Set(i, 4, 1)
		vertical.Set(4, i, 1)
	}

	result, err := Covariance{}.Estimate(horizontal)
	require.NoError(t, err)
	assert.InDelta(t, 0, angleDiff(result.Degrees(), 0), 1e-9)
	assert.InDelta(t, 4, result.X, 1e-12)
	assert.InDelta(t, 4, result.Y, 1e-12)

	result, err = Covariance{}.Estimate(vertical)
	require.NoError(t, err)
	assert.InDelta(t, 0, angleDiff(result.Degrees(), 90), 1e-9)
}

// TestCovariance_Diagonal checks the sign convention: a line running from
// bottom-left to top-right on screen is at +45°
func TestCovariance_Diagonal(t *testing.T) {
	im := models.NewImage(9, 9)
	for i := 0; i < 9; i++ {
		im.Set(i, 8-i, 1)
	}

	result, err := Covariance{}.Estimate(im)
	require.NoError(t, err)
	assert.InDelta(t, 0, angleDiff(result.Degrees(), 45), 1e-9)
}

func TestCovariance_Degenerate(t *testing.T) {
	_, err := Covariance{}.Estimate(models.NewImage(10, 10))
	assert.ErrorIs(t, err, ErrDegenerateInput)

	_, err = Covariance{}.Estimate(models.NewImage(0, 0))
	assert.ErrorIs(t, err, ErrDegenerateInput)
}

// gaussianImage fills every row with the same Gaussian profile
func gaussianImage(width, height int, amplitude, sigma, center float64) *models.Image {
	im := models.NewImage(width, height)
	for y := 0; y < height; y++ {
		row := im.Row(y)
		for x := range row {
			row[x] = gaussian(float64(x), amplitude, sigma, center)
		}
	}
	return im
}

func TestFitRows_RecoversParameters(t *testing.T) {
	im := gaussianImage(25, 4, 50, 4, 12.3)

	fits := FitRows(im, DefaultGuessSigma)
	require.Len(t, fits, 4)
	for y, fit := range fits {
		require.True(t, fit.Valid, "row %d", y)
		assert.InDelta(t, 50, fit.Amplitude, 0.05)
		assert.InDelta(t, 4, fit.Sigma, 0.01)
		assert.InDelta(t, 12.3, fit.Center, 0.01)
	}
}

func TestFitRows_SignalFreeRowInvalid(t *testing.T) {
	im := gaussianImage(25, 5, 50, 4, 12)
	for x := range im.Row(2) {
		im.Set(x, 2, 0)
	}

	fits := FitRows(im, DefaultGuessSigma)
	assert.False(t, fits[2].Valid)
	assert.True(t, fits[1].Valid)
	assert.True(t, fits[3].Valid, "rows after an invalid row are seeded from the last valid fit")
}

func TestFitRows_WeakRowInvalid(t *testing.T) {
	im := gaussianImage(25, 3, 50, 4, 12)
	row := im.Row(1)
	for x := range row {
		row[x] = gaussian(float64(x), 2, 4, 12)
	}

	fits := FitRows(im, DefaultGuessSigma)
	assert.True(t, fits[0].Valid)
	assert.False(t, fits[1].Valid)
	assert.True(t, fits[2].Valid)
}

func TestFitRows_SeedOffTheSignal(t *testing.T) {
	im := models.NewImage(50, 3)
	for y, center := range []float64{5, 40, 38} {
		row := im.Row(y)
		for x := range row {
			row[x] = gaussian(float64(x), 50, 4, center)
		}
	}

	// Row 1 is seeded from row 0, whose center is nowhere near row 1's peak
	fits := FitRows(im, DefaultGuessSigma)
	for y, center := range []float64{5, 40, 38} {
		require.True(t, fits[y].Valid, "row %d", y)
		assert.InDelta(t, center, fits[y].Center, 0.01, "row %d", y)
		assert.InDelta(t, 4, fits[y].Sigma, 0.01, "row %d", y)
	}
}

func TestFitRows_FlatRowInvalid(t *testing.T) {
	im := gaussianImage(25, 3, 50, 4, 12)
	for x := range im.Row(1) {
		im.Set(x, 1, 40)
	}

	fits := FitRows(im, DefaultGuessSigma)
	assert.True(t, fits[0].Valid)
	assert.False(t, fits[1].Valid, "a constant row has no center")
	assert.True(t, fits[2].Valid)
}

func TestLyingFlat(t *testing.T) {
	rows := func(sigma float64) []models.RowFit {
		out := make([]models.RowFit, 8)
		for y := 2; y < 7; y++ {
			out[y] = models.RowFit{Amplitude: 1, Sigma: sigma, Center: 10, Valid: true}
		}
		return out
	}

	assert.True(t, lyingFlat(rows(100)))
	assert.False(t, lyingFlat(rows(1)))
	assert.False(t, lyingFlat(make([]models.RowFit, 4)))
}

func TestFitRows_EmptyImage(t *testing.T) {
	fits := FitRows(models.NewImage(10, 3), DefaultGuessSigma)
	require.Len(t, fits, 3)
	for _, fit := range fits {
		assert.False(t, fit.Valid)
	}
}

func TestResidualAngle(t *testing.T) {
	fits := func(center func(y float64) float64) []models.RowFit {
		out := make([]models.RowFit, 10)
		for y := range out {
			out[y] = models.RowFit{Amplitude: 1, Sigma: 1, Center: center(float64(y)), Valid: true}
		}
		return out
	}

	angle, valid, err := ResidualAngle(fits(func(float64) float64 { return 10 }))
	require.NoError(t, err)
	assert.Equal(t, 10, valid)
	assert.InDelta(t, 0, angle, 1e-12)

	angle, _, err = ResidualAngle(fits(func(y float64) float64 { return 10 + y }))
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/4, angle, 1e-12)

	angle, _, err = ResidualAngle(fits(func(y float64) float64 { return 10 - y }))
	require.NoError(t, err)
	assert.InDelta(t, -math.Pi/4, angle, 1e-12)
}

func TestResidualAngle_IgnoresInvalidRows(t *testing.T) {
	fits := []models.RowFit{
		{Center: 5, Valid: true},
		{Center: 99, Valid: false},
		{Center: 5, Valid: true},
		{Center: 5, Valid: true},
	}

	angle, valid, err := ResidualAngle(fits)
	require.NoError(t, err)
	assert.Equal(t, 3, valid)
	assert.InDelta(t, 0, angle, 1e-12)
}

func TestResidualAngle_InsufficientData(t *testing.T) {
	fits := []models.RowFit{{Center: 1, Valid: true}, {}, {Center: 2, Valid: true}}

	_, valid, err := ResidualAngle(fits)
	require.Error(t, err)
	assert.Equal(t, 2, valid)

	var insufficient *InsufficientFitDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 2, insufficient.Valid)
	assert.ErrorIs(t, err, ErrInsufficientFitData)
}

func TestAligner_SyntheticWires(t *testing.T) {
	for _, noise := range []float64{0, 0.01} {
		for _, degrees := range firstQuadrant {
			result, err := NewAligner(DefaultGuessSigma, DefaultMaxIterations).Align(preparedWire(t, degrees, noise))
			require.NoError(t, err, "noise %.2f angle %.0f", noise, degrees)
			assert.LessOrEqual(t, angleDiff(result.Degrees(), degrees), 2.0,
				"noise %.2f: expected %.0f°, got %.2f°", noise, degrees, result.Degrees())
		}
	}
}

// TestAligner_AllOrientations sweeps every quadrant. The row-wise method may
// give up with a typed error, but it must never return a wrong angle.
func TestAligner_AllOrientations(t *testing.T) {
	for degrees := 0.0; degrees < 180; degrees += 5 {
		result, err := NewAligner(DefaultGuessSigma, DefaultMaxIterations).Align(preparedWire(t, degrees, 0))
		if err != nil {
			assert.True(t, errors.Is(err, ErrInsufficientFitData) || errors.Is(err, ErrConvergence),
				"wire at %.0f°: unexpected error %v", degrees, err)
			continue
		}
		assert.GreaterOrEqual(t, result.Angle, 0.0)
		assert.Less(t, result.Angle, math.Pi)
		assert.LessOrEqual(t, angleDiff(result.Degrees(), degrees), 2.0,
			"expected %.0f°, got %.2f° (residuals %v)", degrees, result.Degrees(), result.Diagnostics.ResidualAngles)
	}
}

func TestAligner_NearHorizontal(t *testing.T) {
	for _, degrees := range []float64{0, 3, 175, 178} {
		result, err := NewAligner(DefaultGuessSigma, DefaultMaxIterations).Align(preparedWire(t, degrees, 0))
		require.NoError(t, err, "wire at %.0f°", degrees)
		assert.LessOrEqual(t, angleDiff(result.Degrees(), degrees), 2.0,
			"expected %.0f°, got %.2f°", degrees, result.Degrees())
		// The first pass turns the wire upright instead of trusting its residual
		assert.GreaterOrEqual(t, result.Diagnostics.Iterations, 1)
	}
}

func TestAligner_RotationEquivariance(t *testing.T) {
	im := preparedWire(t, 20, 0)
	aligner := NewAligner(DefaultGuessSigma, DefaultMaxIterations)

	base, err := aligner.Align(im)
	require.NoError(t, err)

	for _, turn := range []float64{15, 40, 90} {
		rotated, err := aligner.Align(interpolation.Rotate(im, turn*math.Pi/180))
		require.NoError(t, err, "rotated by %.0f°", turn)
		assert.LessOrEqual(t, angleDiff(rotated.Degrees(), base.Degrees()+turn), 2.0,
			"rotated by %.0f°: base %.2f°, got %.2f°", turn, base.Degrees(), rotated.Degrees())
	}
}

func TestAligner_VerticalConvergesImmediately(t *testing.T) {
	im := gaussianImage(21, 30, 80, 3, 10)

	result, err := NewAligner(DefaultGuessSigma, DefaultMaxIterations).Align(im)
	require.NoError(t, err)

	assert.InDelta(t, 90, result.Degrees(), 1e-3)
	assert.Equal(t, 10.5, result.X)
	assert.Equal(t, 15.0, result.Y)
	require.NotNil(t, result.Diagnostics)
	assert.Zero(t, result.Diagnostics.Iterations)
	assert.Len(t, result.Diagnostics.ResidualAngles, 1)
	assert.Equal(t, []int{30}, result.Diagnostics.ValidRows)
}

func TestAligner_ConvergenceError(t *testing.T) {
	a := NewAligner(DefaultGuessSigma, 3)
	a.Rotate = func(im *models.Image, _ float64) *models.Image { return im }

	_, err := a.Align(preparedWire(t, 45, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConvergence)

	var convergence *ConvergenceError
	require.True(t, errors.As(err, &convergence))
	assert.Equal(t, 3, convergence.Iterations)
	require.Len(t, convergence.History, 4)
	assert.Equal(t, convergence.History[3], convergence.LastAngle)
	assert.Greater(t, math.Abs(convergence.LastAngle), a.Tolerance)
}

func TestAligner_InsufficientFitData(t *testing.T) {
	im := models.NewImage(20, 10)
	row := im.Row(5)
	for x := range row {
		row[x] = gaussian(float64(x), 10, 2, 10)
	}

	_, err := NewAligner(DefaultGuessSigma, DefaultMaxIterations).Align(im)
	require.Error(t, err)

	var insufficient *InsufficientFitDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 1, insufficient.Valid)
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()

	est, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, Covariance{}, est)

	cfg.Estimator.Method = config.MethodGaussian
	cfg.Estimator.MaxIterations = 7
	cfg.Estimator.ToleranceDegrees = 2
	est, err = New(cfg)
	require.NoError(t, err)
	aligner, ok := est.(*Aligner)
	require.True(t, ok)
	assert.Equal(t, 7, aligner.MaxIterations)
	assert.InDelta(t, 2*math.Pi/180, aligner.Tolerance, 1e-12)

	cfg.Estimator.Method = "hough"
	_, err = New(cfg)
	assert.Error(t, err)
}
