package report

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roadmetrics/trafficwatch/internal/db"
)

// RenderTotalsPlot renders a PNG line plot of session totals over time,
// oldest session first on the x axis.
func RenderTotalsPlot(sessions []db.Session) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Session totals"
	p.X.Label.Text = "Session"
	p.Y.Label.Text = "Vehicles counted"

	pts := make(plotter.XYs, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		pts = append(pts, plotter.XY{X: float64(len(pts) + 1), Y: float64(sessions[i].Total)})
	}

	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build plot series: %w", err)
	}
	p.Add(line, scatter)

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write plot: %w", err)
	}
	return buf.Bytes(), nil
}
