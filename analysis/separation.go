package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/measure"
	"github.com/decibelcooper/fakerate/output"
)

// Separation measures the quark fraction of the fake-rate candidates in
// simulation by truth matching, for every region and prong. The fractions
// are the purities a quark/gluon extraction reads.
type Separation struct {
	Settings
	Config    *config.QG
	Processes []Process
	Out       *output.Dir
	Report    *output.Results
	Log       *slog.Logger
}

// Fraction is the quark fraction of one region and prong.
type Fraction struct {
	Region, Prong config.Step

	// Quark and Gluon are the matched yields.
	Quark, Gluon float64
	// Rates holds the binned quark fraction of every variable.
	Rates map[string]*measure.Measurement
}

// QuarkFraction is Quark / (Quark + Gluon), 0 without candidates.
func (f *Fraction) QuarkFraction() float64 { return ratio(f.Quark, f.Quark+f.Gluon) }

// Total is the number of matched candidates.
func (f *Fraction) Total() float64 { return f.Quark + f.Gluon }

func ratio(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}

// PurityName is the file name, without extension, of a stored quark
// fraction.
func PurityName(region, prong, variable string) string {
	return fmt.Sprintf("%s_%s_%s", region, prong, variable)
}

func (sp *Separation) samples() []Process {
	return Select(sp.Processes, func(p Process) bool { return !p.Data && p.FakeRate })
}

// Fills returns the number of histograms Run fills.
func (sp *Separation) Fills() int {
	c := sp.Config
	return 2 * len(sp.samples()) * len(c.Prongs) * len(c.Regions) * len(c.Variables)
}

func (sp *Separation) log() *slog.Logger {
	if sp.Log == nil {
		return slog.Default()
	}
	return sp.Log
}

// Run measures, stores and plots the quark fractions, and reports the
// matched yields of every prong.
func (sp *Separation) Run(ctx context.Context) ([]*Fraction, error) {
	mc := sp.samples()
	if len(mc) == 0 {
		return nil, errors.New("analysis: separation: no simulated fake-rate sample")
	}
	c := sp.Config
	var out []*Fraction
	for _, prong := range c.Prongs {
		fractions := make([]*Fraction, 0, len(c.Regions))
		for _, region := range c.Regions {
			f, err := sp.region(ctx, mc, prong, region)
			if err != nil {
				return nil, err
			}
			sp.log().Info("measured quark fraction", "prong", prong.Name, "region", region.Name, "fraction", f.QuarkFraction())
			fractions = append(fractions, f)
		}
		if err := sp.plots(prong, fractions); err != nil {
			return nil, err
		}
		if err := sp.report(prong, fractions); err != nil {
			return nil, err
		}
		out = append(out, fractions...)
	}
	return out, nil
}

func (sp *Separation) region(ctx context.Context, mc []Process, prong, region config.Step) (*Fraction, error) {
	c := sp.Config
	sel := c.Base.And(prong.Cut).And(region.Cut)
	quarks, gluons := sel.And(c.Quark), sel.And(c.Gluon)

	f := &Fraction{Region: region, Prong: prong, Rates: make(map[string]*measure.Measurement)}
	for _, v := range c.Variables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := sp.Sum(mc, v, quarks, nil)
		if err != nil {
			return nil, err
		}
		g, err := sp.Sum(mc, v, gluons, nil)
		if err != nil {
			return nil, err
		}
		name := PurityName(region.Name, prong.Name, v.Name)
		rate, err := measure.DivideBinomial(name, measure.FromH1D(v.Name, q), measure.FromH1D(v.Name, hbook.AddH1D(q, g)))
		if err != nil {
			return nil, fmt.Errorf("analysis: %s: %w", name, err)
		}
		if sp.Out != nil {
			if err := sp.Out.Store(name, config.DefaultPurityObject, rate); err != nil {
				return nil, err
			}
		}
		f.Rates[v.Name] = rate
	}

	var err error
	if f.Quark, err = sp.yield(mc, quarks); err != nil {
		return nil, err
	}
	if f.Gluon, err = sp.yield(mc, gluons); err != nil {
		return nil, err
	}
	return f, nil
}

func (sp *Separation) yield(procs []Process, sel cut.Cut) (float64, error) {
	var sum float64
	for _, p := range procs {
		n, err := p.Count(sp.Settings, sel)
		if err != nil {
			return 0, err
		}
		sum += n
	}
	return sum, nil
}

func (sp *Separation) plots(prong config.Step, fractions []*Fraction) error {
	if sp.Out == nil {
		return nil
	}
	for _, v := range sp.Config.Variables {
		series := make([]output.Series, 0, len(fractions))
		for _, f := range fractions {
			series = append(series, output.Series{M: f.Rates[v.Name], Label: f.Region.Title})
		}
		style := output.Style{
			XLabel:     v.Label(),
			YLabel:     "quark fraction",
			Luminosity: sp.Luminosity,
			Simulation: true,
			OneLine:    true,
			YHigh:      1.05,
		}
		if err := sp.Out.Plot(fmt.Sprintf("Q-G-Separation_%s_%s_ratio", prong.Name, v.Name), style, series...); err != nil {
			return err
		}
	}
	return nil
}

// report writes the fractions of every region of a prong. Two regions are
// also compared: how much the quark fraction differs and how well the
// pair separates quarks from gluons.
func (sp *Separation) report(prong config.Step, fractions []*Fraction) error {
	if sp.Report == nil {
		return nil
	}
	r := sp.Report
	var all float64
	for _, f := range fractions {
		all += f.Total()
	}
	if err := r.Printf("Probing: %s\n---------------------------------\n", prong.Title); err != nil {
		return err
	}
	for _, f := range fractions {
		if err := r.Printf("Region %s:\nQuark Fraction: %.2f%%\nGluon Fraction: %.2f%%\n", f.Region.Title, 100*f.QuarkFraction(), 100*ratio(f.Gluon, f.Total())); err != nil {
			return err
		}
	}
	if len(fractions) == 2 {
		r1, r2 := fractions[0], fractions[1]
		if err := r.Printf("Difference:\nIn Quark Fraction: %.2f\nIn Gluon Fraction: %.2f\n",
			100*(r2.QuarkFraction()-r1.QuarkFraction()),
			100*(ratio(r1.Gluon, r1.Total())-ratio(r2.Gluon, r2.Total()))); err != nil {
			return err
		}
	}
	if err := r.Printf("Statistics:\n"); err != nil {
		return err
	}
	for _, f := range fractions {
		if err := r.Printf("Region %s: %.1f (%.2f%%)\n", f.Region.Title, f.Total(), 100*ratio(f.Total(), all)); err != nil {
			return err
		}
	}
	if len(fractions) == 2 {
		r1, r2 := fractions[0], fractions[1]
		good := r1.Gluon + r2.Quark
		bad := r2.Gluon + r1.Quark
		if err := r.Printf("Figure of Merits:\nG(R1) + Q(R2): %.1f\nG(R2) + Q(R1): %.1f\n", good, bad); err != nil {
			return err
		}
		if err := r.Printf("( G(R1) + Q(R2) )/( G(R2) + Q(R1) ): %.2f\n", ratio(good, bad)); err != nil {
			return err
		}
		if err := r.Printf("( G(R1) + Q(R2) )/sqrt( Sum(R1) + Sum(R2) ): %.2f\n", ratio(good, math.Sqrt(all))); err != nil {
			return err
		}
	}
	return r.Printf("\n")
}
