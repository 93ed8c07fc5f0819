// Package report renders training diagnostics.
package report

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoHistory is returned when there is nothing to plot.
var ErrNoHistory = errors.New("report: empty likelihood history")

// Width and Height of rendered charts.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// Convergence builds a plot of the average log-likelihood per EM iteration.
func Convergence(title string, history []float64) (*plot.Plot, error) {
	if len(history) == 0 {
		return nil, ErrNoHistory
	}
	pts := make(plotter.XYs, len(history))
	for i, ll := range history {
		pts[i].X = float64(i + 1)
		pts[i].Y = ll
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "avg log-likelihood"
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	p.Add(line, points)
	return p, nil
}

// SaveConvergence writes a convergence chart to path. The image format is
// taken from the file extension (png, svg, pdf, ...).
func SaveConvergence(path, title string, history []float64) error {
	p, err := Convergence(title, history)
	if err != nil {
		return err
	}
	if err := p.Save(Width, Height, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

// WriteConvergence renders a convergence chart to w in the given format.
func WriteConvergence(w io.Writer, format, title string, history []float64) error {
	p, err := Convergence(title, history)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
