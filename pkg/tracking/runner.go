// Package tracking runs orientation estimation over every frame of a
// recording and collects the results into an angle series.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"needle/internal/models"
	"needle/pkg/circular"
	"needle/pkg/config"
	"needle/pkg/orientation"
	"needle/pkg/preprocess"
)

// FailurePolicy decides what a failing frame does to the batch
type FailurePolicy int

const (
	// Skip leaves the frame out of the series and records a FrameError
	Skip FailurePolicy = iota

	// Abort stops the batch at the first failing frame
	Abort
)

func (p FailurePolicy) String() string {
	switch p {
	case Skip:
		return config.PolicySkip
	case Abort:
		return config.PolicyAbort
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParsePolicy converts a config policy name into a FailurePolicy
func ParsePolicy(name string) (FailurePolicy, error) {
	switch name {
	case config.PolicySkip, "":
		return Skip, nil
	case config.PolicyAbort:
		return Abort, nil
	default:
		return Skip, fmt.Errorf("unknown failure policy %q", name)
	}
}

// FrameError records why a frame produced no angle
type FrameError struct {
	// Frame is the 1-based frame number
	Frame int

	// Err is the underlying failure
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// ProgressCallback reports progress after every finished frame
type ProgressCallback func(completed, total int, message string)

// Options holds the batch parameters
type Options struct {
	// Preprocess configures the per-frame preprocessing
	Preprocess preprocess.Options

	// Workers is the number of frames processed at once
	Workers int

	// Policy decides whether failing frames are skipped or abort the batch
	Policy FailurePolicy

	// Rectify unwraps the finished series with circular.Rectify
	Rectify bool

	// Period is the angular period in degrees used by Rectify
	Period float64

	// SaveIntermediaryResults writes every processed ROI to IntermediaryDir
	SaveIntermediaryResults bool
	IntermediaryDir         string

	// AxesDir receives a principal-axes overlay per frame when set
	AxesDir string

	// Verbose logs a line per frame
	Verbose bool

	// Progress is called after every frame when set
	Progress ProgressCallback
}

// DefaultOptions returns the default batch parameters
func DefaultOptions() Options {
	return Options{
		Preprocess:      preprocess.DefaultOptions(),
		Workers:         runtime.NumCPU(),
		Policy:          Skip,
		Period:          180,
		IntermediaryDir: "intermediary_results",
	}
}

// OptionsFromConfig builds batch options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := ParsePolicy(cfg.Batch.FailurePolicy)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Preprocess: preprocess.Options{
			PrimarySigma:    cfg.Preprocessing.PrimarySigma,
			BlurSigma:       cfg.Preprocessing.BlurSigma,
			MaskSigma:       cfg.Preprocessing.MaskSigma,
			PaddingFraction: cfg.Preprocessing.PaddingFraction,
			MaskEnabled:     cfg.Preprocessing.MaskEnabled,
			Connectivity:    cfg.Preprocessing.Connectivity,
		},
		Workers:                 cfg.Batch.Workers,
		Policy:                  policy,
		Rectify:                 cfg.Batch.Rectify,
		Period:                  cfg.Batch.Period,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		AxesDir:                 cfg.Output.AxesDir,
		Verbose:                 cfg.Output.Verbose,
	}, nil
}

// FrameResult is the outcome of one successfully processed frame
type FrameResult struct {
	// Frame is the 1-based frame number
	Frame int

	// ROI is the region of the frame the estimator saw
	ROI models.ROI

	// Result is the estimate, with its center relative to the ROI
	Result models.OrientationResult
}

// FrameX returns the result's center column in frame coordinates
func (r FrameResult) FrameX() float64 {
	return r.Result.X + float64(r.ROI.ColStart)
}

// FrameY returns the result's center row in frame coordinates
func (r FrameResult) FrameY() float64 {
	return r.Result.Y + float64(r.ROI.RowStart)
}

// Runner estimates the orientation of every frame of a source.
// A Runner must not be used for more than one Run at a time.
type Runner struct {
	estimator orientation.Estimator
	opts      Options

	results  []FrameResult
	failures []*FrameError
}

// NewRunner creates a runner that applies estimator to every frame
func NewRunner(estimator orientation.Estimator, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Period <= 0 {
		opts.Period = 180
	}
	return &Runner{
		estimator: estimator,
		opts:      opts,
	}
}

// outcome is the per-frame slot filled by a worker
type outcome struct {
	done   bool
	result FrameResult
	err    *FrameError
}

// Run processes every frame of src and returns the angle series in frame
// order. Angles are in degrees, folded into [0, 180) and unwrapped when
// Rectify is set.
//
// With the Skip policy failing frames are left out and listed by Failures.
// With Abort the lowest-numbered failure is returned as a *FrameError along
// with the frames finished so far. If ctx is cancelled, frames not yet
// started are skipped and the finished ones are returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, src FrameSource) (*models.AngleSeries, error) {
	n := src.Len()
	slots := make([]outcome, n)
	r.results = nil
	r.failures = nil

	if r.opts.SaveIntermediaryResults && r.opts.Verbose {
		log.Printf("Saving processed regions to %s", r.opts.IntermediaryDir)
	}

	var (
		mu        sync.Mutex
		completed int
	)
	report := func(frame int) {
		if r.opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		completed++
		r.opts.Progress(completed, n, fmt.Sprintf("frame %d", frame))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}

		i := i
		g.Go(func() error {
			// Frames queued before a cancellation are not started
			if gctx.Err() != nil {
				return nil
			}

			frame := i + 1
			result, err := r.processFrame(src, i)
			if err != nil {
				fe := &FrameError{Frame: frame, Err: err}
				slots[i] = outcome{err: fe}
				if r.opts.Verbose {
					log.Printf("Frame %d failed: %v", frame, err)
				}
				report(frame)
				if r.opts.Policy == Abort {
					return fe
				}
				return nil
			}

			slots[i] = outcome{done: true, result: result}
			if r.opts.Verbose {
				log.Printf("Frame %d: %v in %v", frame, result.Result, result.ROI)
			}
			report(frame)
			return nil
		})
	}

	waitErr := g.Wait()

	series := models.NewAngleSeries(n)
	for _, slot := range slots {
		switch {
		case slot.done:
			r.results = append(r.results, slot.result)
			series.Append(slot.result.Frame, foldDegrees(slot.result.Result.Degrees()))
		case slot.err != nil:
			r.failures = append(r.failures, slot.err)
		}
	}

	if r.opts.Rectify && series.Len() > 0 {
		series = series.WithAngles(circular.Rectify(series.Angles(), r.opts.Period))
	}

	if waitErr != nil && r.opts.Policy == Abort && len(r.failures) > 0 {
		return series, r.failures[0]
	}
	if err := ctx.Err(); err != nil {
		return series, err
	}
	if waitErr != nil {
		return series, waitErr
	}
	return series, nil
}

// processFrame loads, preprocesses and estimates a single frame
func (r *Runner) processFrame(src FrameSource, i int) (FrameResult, error) {
	frame, err := src.Frame(i)
	if err != nil {
		return FrameResult{}, fmt.Errorf("failed to load frame: %w", err)
	}

	roi, processed, err := preprocess.Preprocess(frame.Image, r.opts.Preprocess)
	if err != nil {
		return FrameResult{}, fmt.Errorf("preprocessing failed: %w", err)
	}

	if r.opts.SaveIntermediaryResults {
		if err := saveIntermediaryResult(r.opts.IntermediaryDir, "roi", i+1, processed); err != nil {
			log.Printf("Warning: Failed to save region of frame %d: %v", i+1, err)
		}
	}

	result, err := r.estimator.Estimate(processed)
	if err != nil {
		return FrameResult{}, fmt.Errorf("estimation failed: %w", err)
	}

	if r.opts.AxesDir != "" {
		if err := saveAxes(r.opts.AxesDir, i+1, processed, result); err != nil {
			log.Printf("Warning: Failed to save axes of frame %d: %v", i+1, err)
		}
	}

	return FrameResult{Frame: i + 1, ROI: roi, Result: result}, nil
}

// Results returns the successful frames of the last Run in frame order
func (r *Runner) Results() []FrameResult {
	out := make([]FrameResult, len(r.results))
	copy(out, r.results)
	return out
}

// Failures returns the failed frames of the last Run in frame order
func (r *Runner) Failures() []*FrameError {
	out := make([]*FrameError, len(r.failures))
	copy(out, r.failures)
	return out
}

// foldDegrees maps an orientation onto [0, 180)
func foldDegrees(deg float64) float64 {
	d := math.Mod(deg, 180)
	if d < 0 {
		d += 180
	}
	return d
}

// IsFrameError reports whether err carries a *FrameError and returns it
func IsFrameError(err error) (*FrameError, bool) {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
