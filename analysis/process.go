// Package analysis measures fake rates, scale factors and cut flows from
// the processes of a configured analysis.
package analysis

import (
	"fmt"

	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/expr"
	"github.com/decibelcooper/fakerate/measure"
	"github.com/decibelcooper/fakerate/syst"
)

// Process is a data or simulated sample.
type Process struct {
	Name     string
	Title    string
	Data     bool
	Scale    float64 // simulation only, 0 means 1
	Weight   string
	FakeRate bool
	Tree     string

	// Open returns the events of the sample in the named tree.
	Open func(tree string) event.Source
}

// Settings are shared by every histogram of a run.
type Settings struct {
	Luminosity  float64 // pb^-1, simulation is not scaled when 0
	Weight      string
	Systematics *syst.Set

	// Progress, if set, is called after every histogram fill. It may be
	// called from several goroutines.
	Progress func()
}

// FromConfig builds the processes of a resolved analysis, reading their
// events from ROOT files.
func FromConfig(a *config.Analysis) []Process {
	procs := make([]Process, 0, len(a.Processes))
	for _, p := range a.Processes {
		files := p.Files
		tree := p.Tree
		if tree == "" {
			tree = a.Tree
		}
		procs = append(procs, Process{
			Name:     p.Name,
			Title:    p.Title,
			Data:     p.Data,
			Scale:    p.Scale,
			Weight:   p.Weight,
			FakeRate: p.FakeRate,
			Tree:     tree,
			Open: func(tree string) event.Source {
				return event.Tree{Files: files, Name: tree}
			},
		})
	}
	return procs
}

// Histogram fills v for the events of p passing sel. Simulation is weighted
// by the global, process and systematic weights with variation in place of
// its nominal, and normalized to the luminosity. Data is never weighted nor
// varied.
func (p Process) Histogram(s Settings, v event.Variable, sel cut.Cut, variation *syst.Variation) (*hbook.H1D, error) {
	if p.Data {
		h, err := event.Fill(p.Open(p.Tree), v, sel, "")
		if err != nil {
			return nil, fmt.Errorf("analysis: %s: %w", p.Name, err)
		}
		s.progress()
		return h, nil
	}
	tree := s.Systematics.TreeName(variation, p.Tree)
	h, err := event.Fill(p.Open(tree), v, sel, s.weight(p, variation, sel))
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", p.Name, err)
	}
	h.Scale(s.scale(p, variation, sel))
	s.progress()
	return h, nil
}

// Count returns the number of events of p passing sel, weighted and
// normalized like Histogram.
func (p Process) Count(s Settings, sel cut.Cut) (float64, error) {
	if p.Data {
		n, err := event.Count(p.Open(p.Tree), sel, "")
		if err != nil {
			return 0, fmt.Errorf("analysis: %s: %w", p.Name, err)
		}
		return n, nil
	}
	n, err := event.Count(p.Open(p.Tree), sel, s.weight(p, nil, sel))
	if err != nil {
		return 0, fmt.Errorf("analysis: %s: %w", p.Name, err)
	}
	return n * s.scale(p, nil, sel), nil
}

func (s Settings) weight(p Process, variation *syst.Variation, sel cut.Cut) string {
	return expr.Product(s.Weight, p.Weight, s.Systematics.TotalWeight(variation, sel))
}

func (s Settings) scale(p Process, variation *syst.Variation, sel cut.Cut) float64 {
	f := s.Systematics.TotalScale(variation, sel)
	if s.Luminosity > 0 {
		f *= s.Luminosity
	}
	if p.Scale != 0 {
		f *= p.Scale
	}
	return f
}

func (s Settings) progress() {
	if s.Progress != nil {
		s.Progress()
	}
}

// Sum fills v for every process in procs and adds the histograms.
func (s Settings) Sum(procs []Process, v event.Variable, sel cut.Cut, variation *syst.Variation) (*hbook.H1D, error) {
	var sum *hbook.H1D
	for _, p := range procs {
		h, err := p.Histogram(s, v, sel, variation)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = h
			continue
		}
		sum = hbook.AddH1D(sum, h)
	}
	if sum == nil {
		sum = v.Binning.H1D()
	}
	sum.Annotation()["name"] = v.Name
	return sum, nil
}

// Ratio is the fraction of candidates passing an identification.
type Ratio struct {
	Reco *hbook.H1D // all candidates
	ID   *hbook.H1D // identified candidates
	Rate *measure.Measurement
}

func (s Settings) ratio(name string, procs []Process, v event.Variable, base, id cut.Cut, variation *syst.Variation) (*Ratio, error) {
	reco, err := s.Sum(procs, v, base, variation)
	if err != nil {
		return nil, err
	}
	idh, err := s.Sum(procs, v, base.And(id), variation)
	if err != nil {
		return nil, err
	}
	return s.divide(name, v, reco, idh)
}

func (s Settings) divide(name string, v event.Variable, reco, id *hbook.H1D) (*Ratio, error) {
	rate, err := measure.DivideBinomial(name, measure.FromH1D(v.Name, id), measure.FromH1D(v.Name, reco))
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", name, err)
	}
	return &Ratio{Reco: reco, ID: id, Rate: rate}, nil
}

// MCFakeRate measures the fake rate of the identification id among the
// candidates passing base in the simulated fake-rate samples.
func (s Settings) MCFakeRate(name string, procs []Process, v event.Variable, base, id cut.Cut, variation *syst.Variation) (*Ratio, error) {
	return s.ratio(name, Select(procs, func(p Process) bool { return !p.Data && p.FakeRate }), v, base, id, variation)
}

// DataFakeRate measures the fake rate in the sum of all data processes.
func (s Settings) DataFakeRate(name string, procs []Process, v event.Variable, base, id cut.Cut) (*Ratio, error) {
	return s.ratio(name, Select(procs, func(p Process) bool { return p.Data }), v, base, id, nil)
}

// ScaleFactor is the data over simulation fake rate with uncorrelated
// errors.
func ScaleFactor(name string, data, mc *measure.Measurement) (*measure.Measurement, error) {
	sf, err := measure.Divide(name, data, mc)
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", name, err)
	}
	return sf, nil
}

// Select returns the processes for which keep is true.
func Select(procs []Process, keep func(Process) bool) []Process {
	var out []Process
	for _, p := range procs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
