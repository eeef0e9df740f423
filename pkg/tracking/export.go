package tracking

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"needle/internal/models"
)

// WriteCSV writes one row per frame of series: frame number, angle in
// degrees and the estimate's center in frame coordinates. Centers come from
// results and are left blank for frames missing from it.
func WriteCSV(w io.Writer, series *models.AngleSeries, results []FrameResult) error {
	byFrame := make(map[int]FrameResult, len(results))
	for _, r := range results {
		byFrame[r.Frame] = r
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"frame", "angle", "x", "y"}); err != nil {
		return err
	}

	frames := series.Frames()
	angles := series.Angles()
	for i, frame := range frames {
		record := []string{
			strconv.Itoa(frame),
			strconv.FormatFloat(angles[i], 'f', 4, 64),
			"",
			"",
		}
		if r, ok := byFrame[frame]; ok {
			record[2] = strconv.FormatFloat(r.FrameX(), 'f', 2, 64)
			record[3] = strconv.FormatFloat(r.FrameY(), 'f', 2, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the series to a CSV file, creating parent directories
func SaveCSV(path string, series *models.AngleSeries, results []FrameResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create series file: %w", err)
	}

	if err := WriteCSV(file, series, results); err != nil {
		file.Close()
		return fmt.Errorf("failed to write series: %w", err)
	}
	return file.Close()
}
