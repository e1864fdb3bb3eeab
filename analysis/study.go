package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/measure"
	"github.com/decibelcooper/fakerate/output"
	"github.com/decibelcooper/fakerate/syst"
)

// WindowSyst names the systematic from varying the Z mass window.
const WindowSyst = "Z_window"

// Study runs the fake-rate and scale-factor measurement.
type Study struct {
	Settings
	Config    *config.Study
	Processes []Process
	Out       *output.Dir
	Report    *output.Results
	Log       *slog.Logger
	Jobs      int // working points measured concurrently, unlimited when < 1
}

// Result holds the measurements of one working point.
type Result struct {
	WorkingPoint config.Step

	MC, Data  *Ratio // nominal
	SF        *measure.Measurement
	Variation map[syst.Key]*Shift

	MCTotal, DataTotal, SFTotal *measure.Measurement
	MCEnv, DataEnv, SFEnv       *measure.Envelope
}

// Shift holds the measurements of one variation.
type Shift struct {
	MC, Data, SF *measure.Measurement
}

// Sources returns the systematics of the study in order, with the Z window
// last when configured.
func (st *Study) Sources() []string {
	var names []string
	for _, x := range st.Systematics.All() {
		names = append(names, x.Name)
	}
	if st.Config.HasWindow() {
		names = append(names, WindowSyst)
	}
	return names
}

// Fills returns the number of histograms Run fills.
func (st *Study) Fills() int {
	c := st.Config
	nMC := len(Select(st.Processes, func(p Process) bool { return !p.Data && p.FakeRate }))
	nData := len(Select(st.Processes, func(p Process) bool { return p.Data }))
	window := 0
	if c.HasWindow() {
		window = 2
	}
	perWP := 0
	if c.MC {
		perWP += 2 * nMC * (1 + 2*st.Systematics.Len() + window)
	}
	if c.Data {
		perWP += 2 * nData * (1 + window)
	}
	return len(c.Variables) * len(c.Prongs) * len(c.WorkingPoints) * perWP
}

// Run measures every variable, prong and working point, and writes the
// report, plots and stored measurements.
func (st *Study) Run(ctx context.Context) error {
	for _, v := range st.Config.Variables {
		if err := st.Report.Printf("Variable %s\n", v.Name); err != nil {
			return err
		}
		for _, prong := range st.Config.Prongs {
			results, err := st.Prong(ctx, v, prong)
			if err != nil {
				return err
			}
			if err := st.write(v, prong, results); err != nil {
				return err
			}
		}
	}
	return nil
}

// Prong measures every working point of one prong multiplicity.
func (st *Study) Prong(ctx context.Context, v event.Variable, prong config.Step) ([]*Result, error) {
	results := make([]*Result, len(st.Config.WorkingPoints))
	g, ctx := errgroup.WithContext(ctx)
	if st.Jobs > 0 {
		g.SetLimit(st.Jobs)
	}
	for i, wp := range st.Config.WorkingPoints {
		g.Go(func() error {
			r, err := st.WorkingPoint(ctx, v, prong, wp)
			if err != nil {
				return err
			}
			results[i] = r
			st.log().Info("measured working point", "variable", v.Name, "prong", prong.Name, "wp", wp.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (st *Study) log() *slog.Logger {
	if st.Log == nil {
		return slog.Default()
	}
	return st.Log
}

// WorkingPoint measures the nominal fake rates and scale factor of one
// working point and every systematic variation of them.
func (st *Study) WorkingPoint(ctx context.Context, v event.Variable, prong, wp config.Step) (*Result, error) {
	c := st.Config
	name := fmt.Sprintf("%s %s %s", v.Name, wp.Title, prong.Title)
	mcBase := c.Base.And(prong.Cut).And(c.TruthMatch)
	dataBase := c.Base.And(prong.Cut)

	r := &Result{WorkingPoint: wp, Variation: make(map[syst.Key]*Shift)}
	var err error
	if c.MC {
		if r.MC, err = st.MCFakeRate(name+" MC", st.Processes, v, mcBase, wp.Cut, nil); err != nil {
			return nil, err
		}
	}
	if c.Data {
		if r.Data, err = st.DataFakeRate(name+" Data", st.Processes, v, dataBase, wp.Cut); err != nil {
			return nil, err
		}
	}
	if r.SF, err = st.scaleFactor(name, r.MC, r.Data); err != nil {
		return nil, err
	}

	for _, x := range st.Systematics.All() {
		for _, variation := range []*syst.Variation{x.Up(), x.Down()} {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			// data is never varied, only the simulation changes
			s := &Shift{}
			if r.MC != nil {
				mc, err := st.MCFakeRate(name+" MC "+variation.Name, st.Processes, v, mcBase, wp.Cut, variation)
				if err != nil {
					return nil, err
				}
				s.MC = mc.Rate
			}
			if r.Data != nil {
				s.Data = r.Data.Rate
			}
			if s.SF, err = st.scaleFactor(name+" "+variation.Name, ratioOf(s.MC), ratioOf(s.Data)); err != nil {
				return nil, err
			}
			r.Variation[syst.Key{Systematic: variation.Name, WorkingPoint: wp.Name}] = s
		}
	}

	if c.HasWindow() {
		for _, w := range []struct {
			name   string
			window cut.Cut
		}{
			{WindowSyst + "_high", c.WindowUp},
			{WindowSyst + "_low", c.WindowDown},
		} {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			sel := c.NoWindow.And(prong.Cut).And(w.window)
			s := &Shift{}
			if r.MC != nil {
				mc, err := st.MCFakeRate(name+" MC "+w.name, st.Processes, v, sel.And(c.TruthMatch), wp.Cut, nil)
				if err != nil {
					return nil, err
				}
				s.MC = mc.Rate
			}
			if r.Data != nil {
				data, err := st.DataFakeRate(name+" Data "+w.name, st.Processes, v, sel, wp.Cut)
				if err != nil {
					return nil, err
				}
				s.Data = data.Rate
			}
			if s.SF, err = st.scaleFactor(name+" "+w.name, ratioOf(s.MC), ratioOf(s.Data)); err != nil {
				return nil, err
			}
			r.Variation[syst.Key{Systematic: w.name, WorkingPoint: wp.Name}] = s
		}
	}

	if err := st.envelopes(r); err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", name, err)
	}
	return r, nil
}

func ratioOf(m *measure.Measurement) *Ratio {
	if m == nil {
		return nil
	}
	return &Ratio{Rate: m}
}

func (st *Study) scaleFactor(name string, mc, data *Ratio) (*measure.Measurement, error) {
	if mc == nil || data == nil {
		return nil, nil
	}
	return ScaleFactor(name+" SF", data.Rate, mc.Rate)
}

// variations returns the up and down variation names of a source.
func (st *Study) variations(source string) (up, down string) {
	if source == WindowSyst {
		return WindowSyst + "_high", WindowSyst + "_low"
	}
	x, _ := st.Systematics.Get(source)
	return x.Up().Name, x.Down().Name
}

func (st *Study) envelopes(r *Result) error {
	if r.MC != nil {
		r.MCEnv = measure.NewEnvelope(r.MC.Rate)
	}
	if r.Data != nil {
		r.DataEnv = measure.NewEnvelope(r.Data.Rate)
	}
	if r.SF != nil {
		r.SFEnv = measure.NewEnvelope(r.SF)
	}
	for _, source := range st.Sources() {
		upName, downName := st.variations(source)
		up := r.Variation[syst.Key{Systematic: upName, WorkingPoint: r.WorkingPoint.Name}]
		down := r.Variation[syst.Key{Systematic: downName, WorkingPoint: r.WorkingPoint.Name}]
		for _, e := range []struct {
			env      *measure.Envelope
			up, down *measure.Measurement
		}{
			{r.MCEnv, up.MC, down.MC},
			{r.DataEnv, up.Data, down.Data},
			{r.SFEnv, up.SF, down.SF},
		} {
			if e.env == nil {
				continue
			}
			if err := e.env.Add(source, e.up, e.down); err != nil {
				return err
			}
		}
	}
	if r.MCEnv != nil {
		r.MCTotal = r.MCEnv.Total(r.MC.Rate.Name + " all systs")
	}
	if r.DataEnv != nil {
		r.DataTotal = r.DataEnv.Total(r.Data.Rate.Name + " all systs")
	}
	if r.SFEnv != nil {
		r.SFTotal = r.SFEnv.Total(r.SF.Name + " all systs")
	}
	return nil
}

func (st *Study) write(v event.Variable, prong config.Step, results []*Result) error {
	if err := st.Report.Printf(" %s\n", prong.Title); err != nil {
		return err
	}
	prefix := v.Name + "_" + prong.Name
	for _, r := range results {
		if err := st.report(r); err != nil {
			return err
		}
		wp := r.WorkingPoint.Name
		if r.MCTotal != nil {
			if err := st.Out.Store(prefix+"_MC_allSysts_"+wp, v.Name, r.MCTotal); err != nil {
				return err
			}
		}
		if r.DataTotal != nil {
			if err := st.Out.Store(prefix+"_Data_allSysts_"+wp, v.Name, r.DataTotal); err != nil {
				return err
			}
			if err := st.distributions(prefix+"_"+wp+"_Data_distributions", v, r.Data); err != nil {
				return err
			}
		}
		if r.SFTotal != nil {
			if err := st.Out.Store(prefix+"_SF_allSysts_"+wp, v.Name, r.SFTotal); err != nil {
				return err
			}
		}
	}
	return st.plots(v, prefix, results)
}

func (st *Study) report(r *Result) error {
	if err := st.Report.Printf("  %s\n", r.WorkingPoint.Title); err != nil {
		return err
	}
	if r.MCEnv == nil {
		return nil
	}
	for _, source := range r.MCEnv.Sources() {
		shift, _ := r.MCEnv.Source(source)
		if err := st.Report.Printf("   %s\n", source); err != nil {
			return err
		}
		for i, b := range r.MC.Rate.Bins {
			var rel, stat float64
			if b.Val != 0 {
				rel = 100 * shift.Bins[i].Err / b.Val
				stat = 100 * b.Err / b.Val
			}
			if err := st.Report.Printf("Bin: %d\tFake Rate: %2.2f %%\tSyst: %.4g %%\tstat. uncert.: %0.6f %%\n",
				i+1, 100*b.Val, rel, stat); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *Study) plots(v event.Variable, prefix string, results []*Result) error {
	var mc, data, sf []output.Series
	for _, r := range results {
		label := r.WorkingPoint.Title
		if r.MCTotal != nil {
			mc = append(mc, output.Series{M: r.MCTotal, Label: label})
		}
		if r.DataTotal != nil {
			data = append(data, output.Series{M: r.DataTotal, Label: label})
		}
		if r.SFTotal != nil {
			sf = append(sf, output.Series{M: r.SFTotal, Label: label})
		}
	}
	fr := output.Style{XLabel: v.Label(), YLabel: "Fake Rate", Luminosity: st.Luminosity}
	if len(mc) > 0 {
		style := fr
		style.Simulation = true
		if err := st.Out.Plot(prefix+"_MC", style, mc...); err != nil {
			return err
		}
	}
	if len(data) > 0 {
		if err := st.Out.Plot(prefix+"_Data", fr, data...); err != nil {
			return err
		}
	}
	if len(sf) > 0 {
		style := output.Style{
			XLabel:     v.Label(),
			YLabel:     "Scale Factor",
			Luminosity: st.Luminosity,
			OneLine:    true,
			YLow:       0.5,
			YHigh:      2,
		}
		if err := st.Out.Plot(prefix+"_SF", style, sf...); err != nil {
			return err
		}
	}
	if !st.Config.PlotEachSyst {
		return nil
	}
	for _, source := range st.Sources() {
		var series []output.Series
		for _, r := range results {
			if r.MCEnv == nil {
				continue
			}
			m, _ := r.MCEnv.Source(source)
			series = append(series, output.Series{M: m, Label: r.WorkingPoint.Title})
		}
		if len(series) == 0 {
			continue
		}
		style := fr
		style.Simulation = true
		if err := st.Out.Plot(prefix+"_MC_"+source, style, series...); err != nil {
			return err
		}
	}
	return nil
}

func (st *Study) distributions(name string, v event.Variable, r *Ratio) error {
	if r.Reco == nil || r.ID == nil {
		return nil
	}
	return st.Out.Distributions(name, v.Label(), []string{"reconstructed", "identified"}, r.Reco, r.ID)
}
