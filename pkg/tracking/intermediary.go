package tracking

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"needle/internal/models"
	"needle/pkg/visualization"
)

// saveIntermediaryResult writes a processed ROI as a lossless 16-bit TIFF so
// the preprocessing of a frame can be inspected
func saveIntermediaryResult(dir, stage string, frame int, im *models.Image) error {
	stageDir := filepath.Join(dir, stage)
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return fmt.Errorf("failed to create intermediary directory: %w", err)
	}

	filename := filepath.Join(stageDir, fmt.Sprintf("%04d.tiff", frame))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer file.Close()

	if err := tiff.Encode(file, ToImage(im), &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	return nil
}

// saveAxes draws the estimate over the processed ROI and writes it as PNG
func saveAxes(dir string, frame int, im *models.Image, result models.OrientationResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create axes directory: %w", err)
	}

	overlay, err := visualization.PrincipalAxes(im, result)
	if err != nil {
		return err
	}
	return visualization.SaveAxes(overlay, filepath.Join(dir, fmt.Sprintf("%04d.png", frame)))
}
