package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/measure"
	"github.com/decibelcooper/fakerate/output"
)

// DataMC compares the data with the sum of the simulated processes.
type DataMC struct {
	Settings
	Config    *config.Comparison
	Processes []Process
	Out       *output.Dir
	Log       *slog.Logger
}

// Comparison holds the histograms of one variable.
type Comparison struct {
	Variable event.Variable
	Data     *hbook.H1D
	MC       []*hbook.H1D // one per simulated process
	Labels   []string
	Ratio    *measure.Measurement // data over simulation
}

// Fills returns the number of histograms Run fills.
func (dm *DataMC) Fills() int {
	return len(dm.Config.Variables) * len(dm.Processes)
}

// Run fills every variable for every process, plots data over the stacked
// simulation and stores the ratio as <variable>_DataMC.
func (dm *DataMC) Run(ctx context.Context) ([]*Comparison, error) {
	data := Select(dm.Processes, func(p Process) bool { return p.Data })
	mc := Select(dm.Processes, func(p Process) bool { return !p.Data })
	sel := dm.Config.Selection

	var out []*Comparison
	for _, v := range dm.Config.Variables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmp := &Comparison{Variable: v}
		var err error
		if cmp.Data, err = dm.Sum(data, v, sel, nil); err != nil {
			return nil, err
		}
		sum := v.Binning.H1D()
		for _, p := range mc {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h, err := p.Histogram(dm.Settings, v, sel, nil)
			if err != nil {
				return nil, err
			}
			cmp.MC = append(cmp.MC, h)
			cmp.Labels = append(cmp.Labels, p.Title)
			sum = hbook.AddH1D(sum, h)
		}
		name := v.Name + "_DataMC"
		cmp.Ratio, err = measure.Divide(name, measure.FromH1D(v.Name, cmp.Data), measure.FromH1D(v.Name, sum))
		if err != nil {
			return nil, fmt.Errorf("analysis: %s: %w", name, err)
		}
		if err := dm.write(cmp); err != nil {
			return nil, err
		}
		dm.log().Info("compared data with simulation", "variable", v.Name)
		out = append(out, cmp)
	}
	return out, nil
}

func (dm *DataMC) write(cmp *Comparison) error {
	if dm.Out == nil {
		return nil
	}
	v := cmp.Variable
	if err := dm.Out.Store(v.Name+"_DataMC", v.Name, cmp.Ratio); err != nil {
		return err
	}
	style := output.Style{
		XLabel:     v.Label(),
		YLabel:     "Events",
		Luminosity: dm.Luminosity,
		YLow:       0.5,
		YHigh:      1.5,
	}
	return dm.Out.Stack(v.Name, style, cmp.Data, cmp.Labels, cmp.MC, cmp.Ratio)
}

func (dm *DataMC) log() *slog.Logger {
	if dm.Log == nil {
		return slog.Default()
	}
	return dm.Log
}
