package models

import (
	"fmt"
	"math"
	"sort"
)

// RowFit holds the Gaussian parameters fitted to one image row.
// Fields other than Valid are meaningless when Valid is false.
type RowFit struct {
	// Amplitude is the peak height A
	Amplitude float64

	// Sigma is the variance-scaled width in A*exp(-(x-x0)^2/(2*Sigma))
	Sigma float64

	// Center is the peak position x0 in columns
	Center float64

	// Valid is false when the fit did not converge onto the row's peak
	Valid bool
}

// Diagnostics carries optional trace data produced by an estimator
type Diagnostics struct {
	// Iterations is the number of rotations the aligner applied
	Iterations int

	// ResidualAngles lists the residual angle (radians) measured at each
	// fitting pass of the aligner, in order
	ResidualAngles []float64

	// ValidRows lists the number of valid row fits at each fitting pass
	ValidRows []int

	// Covariance is the intensity-weighted second moment tensor
	Covariance [2][2]float64

	// Eigenvalues holds the covariance eigenvalues, largest first
	Eigenvalues [2]float64
}

// OrientationResult is the outcome of one orientation estimate.
// Angle is only meaningful modulo pi.
type OrientationResult struct {
	// X is the reported center column
	X float64

	// Y is the reported center row
	Y float64

	// Angle is the orientation in radians, counter-clockwise from the +x
	// axis as the image is displayed
	Angle float64

	// Diagnostics is nil unless the estimator recorded a trace
	Diagnostics *Diagnostics
}

// Degrees returns the angle in degrees
func (r OrientationResult) Degrees() float64 {
	return r.Angle * 180 / math.Pi
}

func (r OrientationResult) String() string {
	return fmt.Sprintf("center=(%.2f, %.2f) angle=%.2f°", r.X, r.Y, r.Degrees())
}

// AngleSeries maps 1-based frame numbers to angles in degrees, kept in
// ascending frame order. Frames whose estimate failed are absent.
type AngleSeries struct {
	frames []int
	angles []float64
}

// NewAngleSeries returns an empty series with room for n frames
func NewAngleSeries(n int) *AngleSeries {
	return &AngleSeries{
		frames: make([]int, 0, n),
		angles: make([]float64, 0, n),
	}
}

// Append adds an angle for frame. Frames appended out of order are
// inserted at their sorted position; a repeated frame replaces the old value.
func (s *AngleSeries) Append(frame int, angle float64) {
	n := len(s.frames)
	if n == 0 || frame > s.frames[n-1] {
		s.frames = append(s.frames, frame)
		s.angles = append(s.angles, angle)
		return
	}
	i := sort.SearchInts(s.frames, frame)
	if i < n && s.frames[i] == frame {
		s.angles[i] = angle
		return
	}
	s.frames = append(s.frames, 0)
	s.angles = append(s.angles, 0)
	copy(s.frames[i+1:], s.frames[i:])
	copy(s.angles[i+1:], s.angles[i:])
	s.frames[i] = frame
	s.angles[i] = angle
}

// Len returns the number of frames present in the series
func (s *AngleSeries) Len() int {
	return len(s.frames)
}

// Get returns the angle recorded for frame
func (s *AngleSeries) Get(frame int) (float64, bool) {
	i := sort.SearchInts(s.frames, frame)
	if i < len(s.frames) && s.frames[i] == frame {
		return s.angles[i], true
	}
	return 0, false
}

// Frames returns a copy of the frame numbers in ascending order
func (s *AngleSeries) Frames() []int {
	out := make([]int, len(s.frames))
	copy(out, s.frames)
	return out
}

// Angles returns a copy of the angles in frame order
func (s *AngleSeries) Angles() []float64 {
	out := make([]float64, len(s.angles))
	copy(out, s.angles)
	return out
}

// WithAngles returns a series with the same frames and the given angles.
// It panics if the lengths differ.
func (s *AngleSeries) WithAngles(angles []float64) *AngleSeries {
	if len(angles) != len(s.frames) {
		panic(fmt.Sprintf("models: %d angles for %d frames", len(angles), len(s.frames)))
	}
	out := &AngleSeries{
		frames: s.Frames(),
		angles: make([]float64, len(angles)),
	}
	copy(out.angles, angles)
	return out
}
