package orientation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"needle/internal/models"
)

// Covariance estimates orientation from the principal eigenvector of the
// image's intensity-weighted covariance matrix. Its center is the intensity
// centroid.
type Covariance struct{}

// Moments returns the centroid and central second moments of im, treating
// intensity as mass. x is the column and y the row.
func Moments(im *models.Image) (xBar, yBar float64, cov *mat.SymDense, err error) {
	if im.Empty() {
		return 0, 0, nil, fmt.Errorf("empty image: %w", ErrDegenerateInput)
	}

	var m00, m10, m01, m11, m20, m02 float64
	for y := 0; y < im.Height; y++ {
		fy := float64(y)
		for x, v := range im.Row(y) {
			fx := float64(x)
			m00 += v
			m10 += v * fx
			m01 += v * fy
			m11 += v * fx * fy
			m20 += v * fx * fx
			m02 += v * fy * fy
		}
	}
	if m00 == 0 || math.IsNaN(m00) || math.IsInf(m00, 0) {
		return 0, 0, nil, fmt.Errorf("total intensity is %g: %w", m00, ErrDegenerateInput)
	}

	xBar = m10 / m00
	yBar = m01 / m00
	u11 := (m11 - xBar*m01) / m00
	u20 := (m20 - xBar*m10) / m00
	u02 := (m02 - yBar*m01) / m00

	return xBar, yBar, mat.NewSymDense(2, []float64{u20, u11, u11, u02}), nil
}

// Estimate implements Estimator. The angle is folded into [0, pi).
func (Covariance) Estimate(im *models.Image) (models.OrientationResult, error) {
	xBar, yBar, cov, err := Moments(im)
	if err != nil {
		return models.OrientationResult{}, err
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return models.OrientationResult{}, fmt.Errorf("eigendecomposition failed: %w", ErrDegenerateInput)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	major := floats.MaxIdx(values)
	minor := 1 - major
	ex := vectors.At(0, major)
	ey := vectors.At(1, major)

	diag := &models.Diagnostics{
		Covariance:  [2][2]float64{{cov.At(0, 0), cov.At(0, 1)}, {cov.At(1, 0), cov.At(1, 1)}},
		Eigenvalues: [2]float64{values[major], values[minor]},
	}

	// Rows grow downward, so flip the row component to measure upward
	angle := math.Atan2(-ey, ex)
	if angle < 0 {
		angle += math.Pi
	}
	if angle >= math.Pi {
		angle -= math.Pi
	}

	return models.OrientationResult{
		X:           xBar,
		Y:           yBar,
		Angle:       angle,
		Diagnostics: diag,
	}, nil
}
