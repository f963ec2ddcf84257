package plotting

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrEmptySeries is returned when a series has no points or mismatched axes.
var ErrEmptySeries = errors.New("plot series is empty or mismatched")

const dpi = 150

// limitedTicker spreads at most maxLabels evenly spaced ticks over an axis.
func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := range maxLabels {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(8)
	p.X.Label.TextStyle.Font.Size = vg.Points(13)
	p.Y.Label.TextStyle.Font.Size = vg.Points(13)
	p.X.Padding = vg.Points(10)
	p.Y.Padding = vg.Points(10)
	p.X.Tick.Label.Font.Size = vg.Points(11)
	p.Y.Tick.Label.Font.Size = vg.Points(11)
	p.X.Tick.Marker = limitedTicker(8, "%.0f")
	p.Y.Tick.Marker = limitedTicker(8, "%.1f")
	p.Add(plotter.NewGrid())
}

// LinePlot builds a styled single-series plot of ys over xs.
func LinePlot(title, xlabel, ylabel string, xs, ys []float64) (*plot.Plot, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return nil, ErrEmptySeries
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	stylePlot(p)

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("building line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	return p, nil
}

// WritePNG renders p at the given size in inches.
func WritePNG(w io.Writer, p *plot.Plot, widthIn, heightIn float64) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("writing png: %w", err)
	}
	return bw.Flush()
}

func savePNG(p *plot.Plot, filename string) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("creating plot directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WritePNG(f, p, 8, 5)
}

// SaveTrace writes speed, pressure and wheel angle plots for tr into outDir
// and returns the files written.
func SaveTrace(outDir string, tr Trace) ([]string, error) {
	series := []struct {
		suffix, title, ylabel string
		ys                    []float64
	}{
		{"speed", "Speed", "speed (m/s)", tr.Speed},
		{"pressure", "Boiler pressure", "pressure", tr.Pressure},
		{"wheel_angle", "Driving wheel angle", "angle (deg)", tr.WheelAngle},
	}

	files := make([]string, 0, len(series))
	for _, s := range series {
		p, err := LinePlot(fmt.Sprintf("%s: %s", tr.Scenario, s.title), "time (s)", s.ylabel, tr.Time, s.ys)
		if err != nil {
			return files, fmt.Errorf("%s %s: %w", tr.Scenario, s.suffix, err)
		}
		name := filepath.Join(outDir, fmt.Sprintf("%s_%s.png", tr.Scenario, s.suffix))
		if err := savePNG(p, name); err != nil {
			return files, err
		}
		files = append(files, name)
	}
	return files, nil
}
