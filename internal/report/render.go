package report

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/depthcloud/internal/fsutil"
)

// WriteHistogramPNG renders h as a bar chart in PNG format.
func WriteHistogramPNG(w io.Writer, h Histogram, title string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Depth (m)"
	p.Y.Label.Text = "Points"

	bars, err := plotter.NewBarChart(plotter.Values(h.Counts), vg.Points(12))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(h.Labels()...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -0.9

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// WriteHistogramHTML renders h as a standalone go-echarts page.
func WriteHistogramHTML(w io.Writer, h Histogram, title, subtitle string) error {
	y := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		y[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Depth (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Points"}),
	)
	bar.SetXAxis(h.Labels()).
		AddSeries("depth", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	page := components.NewPage()
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SaveHistogram writes h to path on fsys. The format follows the extension:
// .png or .html.
func SaveHistogram(fsys fsutil.FileSystem, path string, h Histogram, title, subtitle string) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".html" {
		return fmt.Errorf("unsupported report format %q (want .png or .html)", ext)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if ext == ".png" {
		return WriteHistogramPNG(f, h, title)
	}
	return WriteHistogramHTML(f, h, title, subtitle)
}
