// Package diag provides diagnostics for tempered particle filter runs:
// per step series plots and persistence of deterministic-mode reference
// artifacts for regression comparison.
package diag

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewSeriesPlot creates a plot of a per time step filter series (e.g.
// log-likelihood increments or effective sample size) against the step
// index. It returns error if the series is empty or the plot fails to be
// created.
func NewSeriesPlot(title, yLabel string, series []float64) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("invalid data supplied")
	}

	p := plot.New()

	p.Title.Text = title
	p.X.Label.Text = "t"
	p.Y.Label.Text = yLabel

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i].X = float64(i)
		pts[i].Y = v
	}

	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create line points: %v", err)
	}
	line.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}
	scatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	scatter.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(2)

	p.Add(line, scatter)
	p.Legend.Add(yLabel, line)

	return p, nil
}
