package pattern

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/antenna.report/internal/units"
)

// PlotSize is the edge length of the square polar PNG.
const PlotSize = 6 * vg.Inch

const (
	ringStepDB = 10
	spokeDeg   = 30
)

var (
	gridColor    = color.Gray{Y: 190}
	patternColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// PlotTitle is the title of the plot for a frequency in Hz.
func PlotTitle(freqHz float64) string {
	return fmt.Sprintf("Radiation Pattern for %.3f MHz", units.ConvertFrequency(freqHz, units.MHz))
}

// polarXY maps a normalized gain at angle theta onto the plane, with the
// floor at the origin and 0 dB on the outer ring.
func polarXY(theta, db, floor float64) plotter.XY {
	r := db - floor
	if r < 0 || math.IsNaN(r) {
		r = 0
	}
	return plotter.XY{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

// PolarPlot draws normalized gain (dB, one value per evenly spaced angle)
// as a closed curve on polar axes running from floor (centre) to 0 dB.
func PolarPlot(normDB []float64, floor float64, title string) (*plot.Plot, error) {
	if len(normDB) == 0 {
		return nil, fmt.Errorf("no pattern values to plot")
	}
	if floor >= 0 {
		return nil, fmt.Errorf("plot floor must be negative, got %v", floor)
	}

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	radius := -floor
	pad := radius * 1.12
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	if err := addPolarGrid(p, floor); err != nil {
		return nil, err
	}

	angles := PatternAngles(len(normDB))
	pts := make(plotter.XYs, 0, len(normDB)+1)
	for i, db := range normDB {
		pts = append(pts, polarXY(angles[i], db, floor))
	}
	pts = append(pts, pts[0])

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern line: %w", err)
	}
	line.Color = patternColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	return p, nil
}

func addPolarGrid(p *plot.Plot, floor float64) error {
	radius := -floor
	const segments = 180

	var ringLabels plotter.XYLabels
	for db := 0.0; db > floor; db -= ringStepDB {
		r := db - floor
		ring := make(plotter.XYs, segments+1)
		for k := range ring {
			a := 2 * math.Pi * float64(k) / segments
			ring[k] = plotter.XY{X: r * math.Cos(a), Y: r * math.Sin(a)}
		}
		l, err := plotter.NewLine(ring)
		if err != nil {
			return fmt.Errorf("failed to create range ring: %w", err)
		}
		l.Color = gridColor
		l.Width = vg.Points(0.5)
		if db != 0 {
			l.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		}
		p.Add(l)

		a := 22.5 * math.Pi / 180
		ringLabels.XYs = append(ringLabels.XYs, plotter.XY{X: r * math.Cos(a), Y: r * math.Sin(a)})
		ringLabels.Labels = append(ringLabels.Labels, fmt.Sprintf("%g dB", db))
	}

	var spokeLabels plotter.XYLabels
	for deg := 0; deg < 360; deg += spokeDeg {
		a := float64(deg) * math.Pi / 180
		spoke, err := plotter.NewLine(plotter.XYs{{}, {X: radius * math.Cos(a), Y: radius * math.Sin(a)}})
		if err != nil {
			return fmt.Errorf("failed to create spoke: %w", err)
		}
		spoke.Color = gridColor
		spoke.Width = vg.Points(0.5)
		p.Add(spoke)

		lr := radius * 1.06
		spokeLabels.XYs = append(spokeLabels.XYs, plotter.XY{X: lr * math.Cos(a), Y: lr * math.Sin(a)})
		spokeLabels.Labels = append(spokeLabels.Labels, fmt.Sprintf("%d°", deg))
	}

	for _, set := range []plotter.XYLabels{ringLabels, spokeLabels} {
		labels, err := plotter.NewLabels(set)
		if err != nil {
			return fmt.Errorf("failed to create grid labels: %w", err)
		}
		p.Add(labels)
	}
	return nil
}

// WritePolarPNG renders PolarPlot as a square PNG to w.
func WritePolarPNG(w io.Writer, normDB []float64, floor float64, title string) error {
	p, err := PolarPlot(normDB, floor, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(PlotSize, PlotSize, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
