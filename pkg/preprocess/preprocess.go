package preprocess

import (
	"fmt"

	"needle/internal/models"
)

// Options holds the preprocessing parameters
type Options struct {
	PrimarySigma    float64 // Threshold used to isolate the object in the raw frame
	BlurSigma       float64 // Gaussian blur applied to the cropped region
	MaskSigma       float64 // Threshold used to crush near-black pixels after blurring
	PaddingFraction float64 // ROI margin as a fraction of the largest frame dimension
	MaskEnabled     bool    // Whether the final re-mask runs at all
	Connectivity    int     // 4 or 8
}

// DefaultOptions returns the standard preprocessing parameters
func DefaultOptions() Options {
	return Options{
		PrimarySigma:    3,
		BlurSigma:       1,
		MaskSigma:       -0.5,
		PaddingFraction: 0.03,
		MaskEnabled:     true,
		Connectivity:    4,
	}
}

// Preprocess locates the largest bright object in im, crops a padded region
// around it, blurs the crop and zeroes pixels below the mask threshold.
// The input is never modified.
func Preprocess(im *models.Image, opts Options) (models.ROI, *models.Image, error) {
	if opts.Connectivity == 0 {
		opts.Connectivity = 4
	}

	mask := Threshold(im, opts.PrimarySigma)
	roi, err := ExtractROI(mask, opts.PaddingFraction, opts.Connectivity)
	if err != nil {
		return models.ROI{}, nil, fmt.Errorf("error locating object: %w", err)
	}
	if roi.Empty() {
		return roi, nil, fmt.Errorf("object region %v is empty: %w", roi, ErrNoRegionFound)
	}

	blurred := Blur(im.Crop(roi), opts.BlurSigma)
	if !opts.MaskEnabled {
		return roi, blurred, nil
	}

	keep := Threshold(blurred, opts.MaskSigma)
	for i, fg := range keep.Bits {
		if !fg {
			blurred.Pix[i] = 0
		}
	}
	return roi, blurred, nil
}
