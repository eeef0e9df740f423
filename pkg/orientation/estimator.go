// Package orientation estimates the angle of a single elongated bright
// object in a preprocessed image.
//
// Two estimators are provided. Covariance reads the angle off the principal
// axis of the intensity-weighted second moments in one pass. Aligner fits a
// Gaussian across every row, regresses the fitted centers against the row
// index and rotates the image until the object stands vertical.
//
// Angles are counter-clockwise from the +x axis as the image is displayed,
// with rows growing downward, and are only meaningful modulo 180 degrees.
package orientation

import (
	"errors"
	"fmt"
	"math"

	"needle/internal/models"
	"needle/pkg/config"
)

var (
	// ErrDegenerateInput is returned when an image carries no usable mass
	ErrDegenerateInput = errors.New("degenerate input image")

	// ErrInsufficientFitData matches InsufficientFitDataError
	ErrInsufficientFitData = errors.New("insufficient row fits")

	// ErrConvergence matches ConvergenceError
	ErrConvergence = errors.New("alignment did not converge")
)

// Estimator computes the orientation of the object in an image
type Estimator interface {
	Estimate(im *models.Image) (models.OrientationResult, error)
}

// InsufficientFitDataError reports a fitting pass with fewer than three
// valid rows
type InsufficientFitDataError struct {
	Valid int
}

func (e *InsufficientFitDataError) Error() string {
	return fmt.Sprintf("only %d rows were successfully fit", e.Valid)
}

func (e *InsufficientFitDataError) Is(target error) bool {
	return target == ErrInsufficientFitData
}

// ConvergenceError reports an aligner that ran out of rotations
type ConvergenceError struct {
	// Iterations is the number of rotations applied
	Iterations int

	// LastAngle is the final residual angle in radians
	LastAngle float64

	// History lists every residual angle measured, in radians
	History []float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("after %d rotations the image could not be aligned to the vertical (last residual %.2f°)",
		e.Iterations, e.LastAngle*180/math.Pi)
}

func (e *ConvergenceError) Is(target error) bool {
	return target == ErrConvergence
}

// New returns the estimator selected by cfg.Estimator.Method
func New(cfg *config.Config) (Estimator, error) {
	switch cfg.Estimator.Method {
	case config.MethodCovariance:
		return Covariance{}, nil
	case config.MethodGaussian:
		a := NewAligner(cfg.Estimator.GuessSigma, cfg.Estimator.MaxIterations)
		a.Tolerance = cfg.Estimator.ToleranceDegrees * math.Pi / 180
		return a, nil
	default:
		return nil, fmt.Errorf("unknown estimator method %q", cfg.Estimator.Method)
	}
}
