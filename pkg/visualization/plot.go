// Package visualization renders angle series and estimator overlays.
package visualization

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"needle/internal/models"
)

// PlotSeries draws angle versus frame number and saves it to path. The
// format follows the extension (.png, .svg, .pdf, ...).
func PlotSeries(series *models.AngleSeries, title, path string) error {
	if series == nil || series.Len() == 0 {
		return fmt.Errorf("cannot plot an empty angle series")
	}

	frames := series.Frames()
	angles := series.Angles()
	pts := make(plotter.XYs, len(frames))
	for i := range frames {
		pts[i] = plotter.XY{X: float64(frames[i]), Y: angles[i]}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Angle (°)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)

	points, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to create scatter: %w", err)
	}
	points.Color = line.Color
	points.Radius = vg.Points(2)

	p.Add(line, points)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
