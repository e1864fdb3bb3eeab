package output

import (
	"fmt"
	"os"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook/rootcnv"

	"github.com/decibelcooper/fakerate/measure"
)

// Store writes m to <file>.root in d as a TGraphAsymmErrors named key, and
// to <file>.yoda as a scatter.
func (d *Dir) Store(file, key string, m *measure.Measurement) error {
	s2d := m.S2D()
	s2d.Annotation()["name"] = key

	f, err := groot.Create(d.Join(file + ".root"))
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := f.Put(key, rhist.NewGraphAsymmErrorsFrom(s2d)); err != nil {
		f.Close()
		return fmt.Errorf("output: could not store %q in %s.root: %w", key, file, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	yoda, err := s2d.MarshalYODA()
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := os.WriteFile(d.Join(file+".yoda"), yoda, 0o644); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// Load reads the object key of the ROOT file fname as a measurement. Graphs
// with errors and 1D histograms are accepted.
func Load(fname, key string) (*measure.Measurement, error) {
	f, err := groot.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	defer f.Close()

	obj, err := riofs.Dir(f).Get(key)
	if err != nil {
		return nil, fmt.Errorf("output: could not find %q in %s: %w", key, fname, err)
	}
	switch o := obj.(type) {
	case rhist.H1:
		return measure.FromH1D(key, rootcnv.H1D(o)), nil
	case rhist.GraphErrors:
		return measure.FromS2D(key, rootcnv.S2D(o)), nil
	}
	return nil, fmt.Errorf("output: %q in %s is a %s, not a histogram or graph", key, fname, obj.Class())
}

// Load reads the object key of <file>.root in d.
func (d *Dir) Load(file, key string) (*measure.Measurement, error) {
	return Load(d.Join(file+".root"), key)
}
