package output

import (
	"fmt"
	"image/color"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/decibelcooper/fakerate"
	"github.com/decibelcooper/fakerate/measure"
)

// Series is one measurement drawn on a plot.
type Series struct {
	M     *measure.Measurement
	Label string
}

// Style controls the decoration of a measurement plot.
type Style struct {
	XLabel     string
	YLabel     string
	Luminosity float64 // pb^-1, not shown when 0
	Simulation bool
	OneLine    bool // reference line at 1
	YLow       float64
	YHigh      float64 // automatic when 0
}

var seriesColors = []color.Color{
	color.RGBA{R: 255, A: 255},
	color.RGBA{R: 148, B: 211, A: 255},
	color.RGBA{B: 255, A: 255},
	color.RGBA{A: 255},
	color.RGBA{G: 160, A: 255},
}

// Title is the centre-of-mass energy and integrated luminosity line.
func Title(lumi float64) string {
	return fmt.Sprintf("√s = 13 TeV, ∫L dt = %.2f fb⁻¹", lumi/1000)
}

// Plot draws the measurements with their errors and saves the plot as
// <name>.pdf and <name>.png in d.
func (d *Dir) Plot(name string, style Style, series ...Series) error {
	p := plot.New()
	p.Title.Text = name
	if style.Luminosity > 0 {
		p.Title.Text += "\n" + Title(style.Luminosity)
	}
	if style.Simulation {
		p.Title.Text += "\nSimulation"
	}
	p.X.Label.Text = style.XLabel
	p.Y.Label.Text = style.YLabel
	p.X.Tick.Marker = fakerate.PreciseTicks{NSuggestedTicks: 5}
	p.Y.Tick.Marker = fakerate.PreciseTicks{NSuggestedTicks: 5}

	for i, s := range series {
		xerr, yerr, err := errorBars(s.M, seriesColors[i%len(seriesColors)])
		if err != nil {
			return fmt.Errorf("output: %s: %w", name, err)
		}
		p.Add(xerr, yerr)
		if s.Label != "" {
			p.Legend.Add(s.Label, yerr)
		}
	}

	if style.OneLine && len(series) > 0 {
		if err := oneLine(p, series[0].M); err != nil {
			return fmt.Errorf("output: %s: %w", name, err)
		}
	}

	p.Y.Min = style.YLow
	if style.YHigh > 0 {
		p.Y.Max = style.YHigh
	}
	p.Legend.Top = true

	return save(p, d.Join(name))
}

// errorBars draws the bins of m as points with x errors spanning the bin
// and y errors from the measurement.
func errorBars(m *measure.Measurement, c color.Color) (*plotter.XErrorBars, *plotter.YErrorBars, error) {
	n := m.Len()
	points := make(plotter.XYs, n)
	xErrors := make(plotter.XErrors, n)
	yErrors := make(plotter.YErrors, n)
	for j, b := range m.Bins {
		lo, hi := m.Bin(j)
		points[j].X = 0.5 * (lo + hi)
		points[j].Y = b.Val
		xErrors[j].Low = points[j].X - lo
		xErrors[j].High = hi - points[j].X
		yErrors[j].Low = b.Err
		yErrors[j].High = b.Err
	}
	errPoints := plotutil.ErrorPoints{XYs: points, XErrors: xErrors, YErrors: yErrors}
	xerr, err := plotter.NewXErrorBars(errPoints)
	if err != nil {
		return nil, nil, err
	}
	yerr, err := plotter.NewYErrorBars(errPoints)
	if err != nil {
		return nil, nil, err
	}
	xerr.LineStyle.Color = c
	yerr.LineStyle.Color = c
	return xerr, yerr, nil
}

// oneLine draws a reference line at 1 over the range of m.
func oneLine(p *plot.Plot, m *measure.Measurement) error {
	if m.Len() == 0 {
		return nil
	}
	lo, _ := m.Bin(0)
	_, hi := m.Bin(m.Len() - 1)
	line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: 1}, {X: hi, Y: 1}})
	if err != nil {
		return err
	}
	line.LineStyle.Color = color.Gray{Y: 160}
	p.Add(line)
	return nil
}

// Stack draws data over the stacked simulated histograms, with the ratio of
// data to simulation below, and saves <name>.pdf and <name>.png in d. The
// y range of style applies to the ratio.
func (d *Dir) Stack(name string, style Style, data *hbook.H1D, labels []string, mc []*hbook.H1D, ratio *measure.Measurement) error {
	if len(labels) != len(mc) {
		return fmt.Errorf("output: %s: %d labels for %d histograms", name, len(labels), len(mc))
	}
	rp := hplot.NewRatioPlot()
	rp.Ratio = 0.3

	top := rp.Top
	top.Title.Text = name
	if style.Luminosity > 0 {
		top.Title.Text += "\n" + Title(style.Luminosity)
	}
	top.Y.Label.Text = style.YLabel
	top.X.Tick.Marker = fakerate.PreciseTicks{NSuggestedTicks: 5}

	stack := make([]*hplot.H1D, len(mc))
	for i, h := range mc {
		hh := hplot.NewH1D(h)
		hh.FillColor = seriesColors[i%len(seriesColors)]
		hh.LineStyle.Color = hh.FillColor
		stack[i] = hh
		top.Legend.Add(labels[i], hh)
	}
	if len(stack) > 0 {
		top.Add(hplot.NewHStack(stack))
	}
	if data != nil {
		hd := hplot.NewH1D(data, hplot.WithYErrBars(true))
		hd.LineStyle.Color = color.Black
		if hd.YErrs != nil {
			hd.YErrs.LineStyle.Color = color.Black
		}
		top.Add(hd)
		top.Legend.Add("Data", hd)
	}
	top.Legend.Top = true

	bottom := rp.Bottom
	bottom.X.Label.Text = style.XLabel
	bottom.Y.Label.Text = "Data / MC"
	bottom.X.Tick.Marker = fakerate.PreciseTicks{NSuggestedTicks: 5}
	if ratio != nil {
		xerr, yerr, err := errorBars(ratio, color.Black)
		if err != nil {
			return fmt.Errorf("output: %s: %w", name, err)
		}
		bottom.Add(xerr, yerr)
		if err := oneLine(bottom.Plot, ratio); err != nil {
			return fmt.Errorf("output: %s: %w", name, err)
		}
	}
	bottom.Y.Min = style.YLow
	if style.YHigh > 0 {
		bottom.Y.Max = style.YHigh
	}

	prefix := d.Join(name)
	if err := hplot.Save(rp, 6*vg.Inch, 5*vg.Inch, prefix+".pdf", prefix+".png"); err != nil {
		return fmt.Errorf("output: could not save %s: %w", prefix, err)
	}
	return nil
}

// Distributions draws histograms of one variable, such as the identified
// and reconstructed candidates of a fake rate.
func (d *Dir) Distributions(name, xlabel string, labels []string, hists ...*hbook.H1D) error {
	p := hplot.New()
	p.Title.Text = name
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "Events"
	p.X.Tick.Marker = fakerate.PreciseTicks{NSuggestedTicks: 5}

	for i, h := range hists {
		hh := hplot.NewH1D(h, hplot.WithYErrBars(true))
		hh.LineStyle.Color = seriesColors[i%len(seriesColors)]
		if hh.YErrs != nil {
			hh.YErrs.LineStyle.Color = hh.LineStyle.Color
		}
		p.Add(hh)
		if i < len(labels) {
			p.Legend.Add(labels[i], hh)
		}
	}
	p.Legend.Top = true

	return save(p.Plot, d.Join(name))
}

func save(p *plot.Plot, prefix string) error {
	for _, ext := range []string{".pdf", ".png"} {
		if err := p.Save(6*vg.Inch, 4*vg.Inch, prefix+ext); err != nil {
			return fmt.Errorf("output: could not save %s%s: %w", prefix, ext, err)
		}
	}
	return nil
}
