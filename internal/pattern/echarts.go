package pattern

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/antenna.report/internal/sweep"
)

// RenderPolarHTML writes an interactive chart with one polar series per
// frequency point (polar mapped onto XY), radius measured from floor.
func RenderPolarHTML(w io.Writer, m *sweep.Matrix, freqs []float64, floor float64, title string) error {
	angles, points := m.Dims()
	if len(freqs) != points {
		return fmt.Errorf("have %d frequencies for %d sweep points", len(freqs), points)
	}
	pad := -floor * 1.05

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Antenna Pattern (Polar->XY)", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("angles=%d points=%d floor=%g dB", angles, points, floor)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "dB above floor", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, NameLocation: "middle", NameGap: 30}),
	)

	theta := PatternAngles(angles)
	for j := 0; j < points; j++ {
		norm := NormalizedDB(m.Column(j))
		data := make([]opts.ScatterData, 0, angles)
		for i, db := range norm {
			xy := polarXY(theta[i], db, floor)
			deg := theta[i] * 180 / math.Pi
			data = append(data, opts.ScatterData{
				Name:  fmt.Sprintf("%.1f° %.1f dB", deg, Clip([]float64{db}, floor)[0]),
				Value: []interface{}{xy.X, xy.Y},
			})
		}
		scatter.AddSeries(fmt.Sprintf("%.3f MHz", freqs[j]/1e6), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
