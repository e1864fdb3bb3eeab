package config

import (
	"errors"
	"fmt"

	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/syst"
)

// Analysis is a configuration with every name resolved.
type Analysis struct {
	Luminosity  float64
	Weight      string
	Tree        string
	Cuts        *cut.Set
	Processes   []Process
	Systematics *syst.Set
	Variables   []event.Variable
	Cutflow     []cut.Cut
	FakeRate    *Study
	Extract     *Extract
	Separation  *QG
	Yields      *YieldTable
	DataMC      *Comparison
}

// Step is a resolved Category.
type Step struct {
	Name  string
	Title string
	Cut   cut.Cut
}

// Study is a resolved FakeRate.
type Study struct {
	Base          cut.Cut
	NoWindow      cut.Cut
	WindowUp      cut.Cut
	WindowDown    cut.Cut
	TruthMatch    cut.Cut
	Prongs        []Step
	WorkingPoints []Step
	Variables     []event.Variable
	MC            bool
	Data          bool
	PlotEachSyst  bool
}

// QG is a resolved Separation.
type QG struct {
	Base      cut.Cut
	Quark     cut.Cut
	Gluon     cut.Cut
	Regions   []Step
	Prongs    []Step
	Variables []event.Variable
}

// YieldTable is a resolved Yields.
type YieldTable struct {
	Base       cut.Cut
	Selections []cut.Cut
}

// Comparison is a resolved DataMC.
type Comparison struct {
	Selection cut.Cut
	Variables []event.Variable
}

// Variable returns the variable called name.
func (a *Analysis) Variable(name string) (event.Variable, bool) {
	for _, v := range a.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return event.Variable{}, false
}

// Resolve compiles the cuts and links every name to what it refers to.
func (c *Config) Resolve() (*Analysis, error) {
	a := &Analysis{
		Luminosity: c.Luminosity,
		Weight:     c.Weight,
		Tree:       c.Tree,
		Processes:  c.Processes,
		Extract:    c.Extract,
	}

	cuts, err := c.cuts()
	if err != nil {
		return nil, err
	}
	a.Cuts = cuts

	a.Systematics, err = c.systematics(cuts)
	if err != nil {
		return nil, err
	}

	for _, v := range c.Variables {
		a.Variables = append(a.Variables, event.Variable{
			Name:    v.Name,
			Expr:    v.Expr,
			Title:   v.Title,
			Unit:    v.Unit,
			Binning: v.Binning,
		})
	}

	for _, name := range c.Cutflow {
		x, ok := cuts.Get(name)
		if !ok {
			return nil, fmt.Errorf("config: cutflow: unknown cut %q", name)
		}
		a.Cutflow = append(a.Cutflow, x)
	}

	if c.FakeRate != nil {
		a.FakeRate, err = c.study(a)
		if err != nil {
			return nil, fmt.Errorf("config: fakerate: %w", err)
		}
	}
	if c.Separation != nil {
		a.Separation, err = c.separation(a)
		if err != nil {
			return nil, fmt.Errorf("config: separation: %w", err)
		}
	}
	if y := c.Yields; y != nil {
		t := &YieldTable{}
		if t.Base, err = a.Cuts.All(y.Base...); err != nil {
			return nil, fmt.Errorf("config: yields: %w", err)
		}
		for _, name := range y.Selections {
			x, ok := a.Cuts.Get(name)
			if !ok {
				return nil, fmt.Errorf("config: yields: unknown cut %q", name)
			}
			t.Selections = append(t.Selections, x)
		}
		a.Yields = t
	}
	if d := c.DataMC; d != nil {
		cmp := &Comparison{}
		if cmp.Selection, err = a.Cuts.All(d.Selection...); err != nil {
			return nil, fmt.Errorf("config: datamc: %w", err)
		}
		if cmp.Variables, err = variables(a, d.Variables); err != nil {
			return nil, fmt.Errorf("config: datamc: %w", err)
		}
		a.DataMC = cmp
	}
	return a, nil
}

func variables(a *Analysis, names []string) ([]event.Variable, error) {
	out := make([]event.Variable, 0, len(names))
	for _, name := range names {
		v, ok := a.Variable(name)
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", name)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Config) separation(a *Analysis) (*QG, error) {
	f := c.Separation
	s := &QG{}
	var err error
	if s.Base, err = a.Cuts.All(f.Base...); err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	var ok bool
	if s.Quark, ok = a.Cuts.Get(f.Quark); !ok {
		return nil, fmt.Errorf("unknown cut %q", f.Quark)
	}
	if s.Gluon, ok = a.Cuts.Get(f.Gluon); !ok {
		return nil, fmt.Errorf("unknown cut %q", f.Gluon)
	}
	if s.Regions, err = steps(a.Cuts, f.Regions); err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}
	if s.Prongs, err = steps(a.Cuts, f.Prongs); err != nil {
		return nil, fmt.Errorf("prongs: %w", err)
	}
	if s.Variables, err = variables(a, f.Variables); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Config) cuts() (*cut.Set, error) {
	set, err := cut.NewSet()
	if err != nil {
		return nil, err
	}
	for _, x := range c.Cuts {
		parsed, err := cut.Parse(x.Name, x.Title, x.Expr)
		if err != nil {
			return nil, fmt.Errorf("config: cut %q: %w", x.Name, err)
		}
		if err := set.Add(parsed); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	for _, s := range c.Selections {
		combine := set.All
		names := s.All
		if len(s.Any) > 0 {
			combine, names = set.Any, s.Any
		}
		sel, err := combine(names...)
		if err != nil {
			return nil, fmt.Errorf("config: selection %q: %w", s.Name, err)
		}
		title := s.Title
		if title == "" {
			title = sel.Title()
		}
		if err := set.Add(sel.Named(s.Name, title)); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return set, nil
}

func (c *Config) systematics(cuts *cut.Set) (*syst.Set, error) {
	set, err := syst.NewSet()
	if err != nil {
		return nil, err
	}
	lookup := func(names []string) ([]cut.Cut, error) {
		var out []cut.Cut
		for _, name := range names {
			x, ok := cuts.Get(name)
			if !ok {
				return nil, fmt.Errorf("unknown region %q", name)
			}
			out = append(out, x)
		}
		return out, nil
	}
	for _, s := range c.Systematics {
		var x *syst.Systematic
		switch s.Kind {
		case "tree":
			x = syst.TreeSystematic(s.Name, s.Title, s.Up, s.Down, s.Nominal)
		case "weight":
			x = syst.WeightSystematic(s.Name, s.Title, s.Up, s.Down, s.Nominal)
		case "scale":
			if s.Scale == nil {
				return nil, fmt.Errorf("config: scale systematic %q has no scale", s.Name)
			}
			nominal := s.Scale.Nominal
			if nominal == 0 {
				nominal = 1
			}
			x = syst.ScaleSystematic(s.Name, s.Title, s.Scale.Up, s.Scale.Down, nominal)
		default:
			return nil, fmt.Errorf("config: systematic %q has unknown kind %q", s.Name, s.Kind)
		}
		if x.OnlyRegions, err = lookup(s.Only); err != nil {
			return nil, fmt.Errorf("config: systematic %q: %w", s.Name, err)
		}
		if x.NotRegions, err = lookup(s.Not); err != nil {
			return nil, fmt.Errorf("config: systematic %q: %w", s.Name, err)
		}
		if err := set.Add(x); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return set, nil
}

func (c *Config) study(a *Analysis) (*Study, error) {
	f := c.FakeRate
	s := &Study{
		MC:           !f.SkipMC,
		Data:         !f.SkipData,
		PlotEachSyst: f.PlotEachSyst,
	}

	var err error
	if s.Base, err = a.Cuts.All(f.Base...); err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	if s.NoWindow, err = a.Cuts.All(f.NoWindow...); err != nil {
		return nil, fmt.Errorf("no_window: %w", err)
	}
	if (f.WindowUp == "") != (f.WindowDown == "") {
		return nil, errors.New("window_up and window_down go together")
	}
	for _, w := range []struct {
		name string
		dst  *cut.Cut
	}{
		{f.WindowUp, &s.WindowUp},
		{f.WindowDown, &s.WindowDown},
		{f.TruthMatch, &s.TruthMatch},
	} {
		if w.name == "" {
			*w.dst = cut.None
			continue
		}
		x, ok := a.Cuts.Get(w.name)
		if !ok {
			return nil, fmt.Errorf("unknown cut %q", w.name)
		}
		*w.dst = x
	}

	if s.Prongs, err = steps(a.Cuts, f.Prongs); err != nil {
		return nil, fmt.Errorf("prongs: %w", err)
	}
	if s.WorkingPoints, err = steps(a.Cuts, f.WorkingPoints); err != nil {
		return nil, fmt.Errorf("working points: %w", err)
	}
	if s.Variables, err = variables(a, f.Variables); err != nil {
		return nil, err
	}
	return s, nil
}

// HasWindow reports whether the Z window systematic is configured.
func (s *Study) HasWindow() bool {
	return !s.WindowUp.Equal(cut.None) || !s.WindowDown.Equal(cut.None)
}

func steps(cuts *cut.Set, cats []Category) ([]Step, error) {
	out := make([]Step, 0, len(cats))
	for _, c := range cats {
		x, ok := cuts.Get(c.Cut)
		if !ok {
			return nil, fmt.Errorf("%q: unknown cut %q", c.Name, c.Cut)
		}
		title := c.Title
		if title == "" {
			title = x.Title()
		}
		out = append(out, Step{Name: c.Name, Title: title, Cut: x})
	}
	return out, nil
}
