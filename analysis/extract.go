package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/measure"
	"github.com/decibelcooper/fakerate/output"
)

// Extract separates quark and gluon fake rates from the data fake rates of
// a quark-enriched and a gluon-enriched region.
type Extract struct {
	Config     *config.Extract
	Variable   event.Variable
	Luminosity float64
	Out        *output.Dir
	Log        *slog.Logger
}

// Flavors are the quark and gluon fake rates of one prong and working
// point.
type Flavors struct {
	Name         string // <prong>_<working point>
	Quark, Gluon *measure.Measurement
}

// purity loads a quark fraction and folds the difference to its
// alternative estimate into its errors.
func purity(file, variation, object string) (*measure.Measurement, error) {
	nom, err := output.Load(file, object)
	if err != nil {
		return nil, err
	}
	if variation == "" {
		return nom, nil
	}
	alt, err := output.Load(variation, object)
	if err != nil {
		return nil, err
	}
	return measure.WithVariation(nom.Name, nom, alt)
}

// StoredName is the file name, without extension, of a stored fake rate.
func StoredName(variable, prong, kind, wp string) string {
	return fmt.Sprintf("%s_%s_%s_allSysts_%s", variable, prong, kind, wp)
}

func (x *Extract) log() *slog.Logger {
	if x.Log == nil {
		return slog.Default()
	}
	return x.Log
}

// Run extracts the quark and gluon fake rates of every configured prong and
// working point, stores them and plots them against simulation when
// available.
func (x *Extract) Run(ctx context.Context) ([]Flavors, error) {
	c := x.Config
	comb := measure.Combiner{Log: x.log()}
	var out []Flavors
	for _, pur := range c.Purities {
		q1, err := purity(pur.Quark, pur.QuarkVariation, pur.Object)
		if err != nil {
			return nil, fmt.Errorf("analysis: quark region purity: %w", err)
		}
		q2, err := purity(pur.Gluon, pur.GluonVariation, pur.Object)
		if err != nil {
			return nil, fmt.Errorf("analysis: gluon region purity: %w", err)
		}
		for _, wp := range c.WorkingPoints {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			file := StoredName(x.Variable.Name, pur.Prong, "Data", wp) + ".root"
			fr1, err := output.Load(filepath.Join(c.QuarkRegion, file), x.Variable.Name)
			if err != nil {
				return nil, fmt.Errorf("analysis: quark region: %w", err)
			}
			fr2, err := output.Load(filepath.Join(c.GluonRegion, file), x.Variable.Name)
			if err != nil {
				return nil, fmt.Errorf("analysis: gluon region: %w", err)
			}

			name := pur.Prong + "_" + wp
			f := Flavors{Name: name}
			if f.Quark, err = comb.Quark("FR_Q_"+name, fr1, q1, fr2, q2); err != nil {
				return nil, fmt.Errorf("analysis: %s: %w", name, err)
			}
			if f.Gluon, err = comb.Gluon("FR_G_"+name, fr1, q1, fr2, q2); err != nil {
				return nil, fmt.Errorf("analysis: %s: %w", name, err)
			}
			if err := x.write(pur.Prong, wp, f); err != nil {
				return nil, err
			}
			x.log().Info("extracted fake rates", "prong", pur.Prong, "wp", wp)
			out = append(out, f)
		}
	}
	return out, nil
}

func (x *Extract) write(prong, wp string, f Flavors) error {
	c := x.Config
	for _, flavor := range []struct {
		name  string
		label string
		m     *measure.Measurement
		mc    string
	}{
		{"Q", "quark", f.Quark, c.QuarkMC},
		{"G", "gluon", f.Gluon, c.GluonMC},
	} {
		base := "Extract_QG_FakeRates_" + f.Name + "_" + flavor.name
		if err := x.Out.Store(base, x.Variable.Name, flavor.m); err != nil {
			return err
		}

		series := []output.Series{{M: flavor.m, Label: "Data " + flavor.label + " fake rate"}}
		if flavor.mc != "" {
			file := filepath.Join(flavor.mc, StoredName(x.Variable.Name, prong, "MC", wp)+".root")
			mc, err := output.Load(file, x.Variable.Name)
			if err != nil {
				return fmt.Errorf("analysis: %s simulation: %w", flavor.label, err)
			}
			series = append(series, output.Series{M: mc, Label: "MC " + flavor.label + " fake rate"})
		}
		style := output.Style{
			XLabel:     x.Variable.Label(),
			YLabel:     "Fake Rate",
			Luminosity: x.Luminosity,
			YHigh:      c.YHigh[f.Name],
		}
		if err := x.Out.Plot(base+"_compare", style, series...); err != nil {
			return err
		}
	}
	return nil
}
