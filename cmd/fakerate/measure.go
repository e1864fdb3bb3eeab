package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/decibelcooper/fakerate"
	"github.com/decibelcooper/fakerate/analysis"
	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/output"
)

var (
	measureVariables []string
	measureEdges     = fakerate.FloatArrayFlags{}
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure fake rates and scale factors with all systematics",
	Long: `measure fills the reconstructed and identified tau candidates of every
configured variable, prong multiplicity and working point, in simulation and
in data, and derives fake rates and scale factors. Every systematic of the
configuration is evaluated, plus the Z mass window variation.

The totals are stored as <variable>_<prong>_{MC,Data,SF}_allSysts_<wp>.root
and plotted; a per-bin report is written to FakeRates_Syst.txt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAnalysis()
		if err != nil {
			return err
		}
		if a.FakeRate == nil {
			return errors.New("configuration has no fakerate section")
		}
		study := *a.FakeRate
		if study.Variables, err = selectVariables(a, study.Variables); err != nil {
			return err
		}

		dir, err := createOutput("FakeRates_Syst")
		if err != nil {
			return err
		}
		if err := dir.WriteSettings(settings(a, study.Base.Expression())); err != nil {
			return err
		}
		report, err := dir.Results("FakeRates_Syst.txt")
		if err != nil {
			return err
		}
		defer report.Close()

		st := &analysis.Study{
			Settings: analysis.Settings{
				Luminosity:  a.Luminosity,
				Weight:      a.Weight,
				Systematics: a.Systematics,
			},
			Config:    &study,
			Processes: analysis.FromConfig(a),
			Out:       dir,
			Report:    report,
			Log:       logger,
			Jobs:      jobs,
		}
		bar := newProgress(cmd.ErrOrStderr(), "measure", st.Fills())
		st.Progress = bar.Func()
		err = st.Run(cmd.Context())
		bar.Wait()
		if err != nil {
			return err
		}
		logger.Info("fake rates written", "dir", dir.Path)
		return report.Close()
	},
}

// selectVariables applies --variable and --edges to the measured
// variables.
func selectVariables(a *config.Analysis, vars []event.Variable) ([]event.Variable, error) {
	if len(measureVariables) > 0 {
		vars = nil
		for _, name := range measureVariables {
			v, ok := a.Variable(name)
			if !ok {
				return nil, errors.New("unknown variable " + name)
			}
			vars = append(vars, v)
		}
	}
	if measureEdges.Changed() {
		binning := event.Edges(measureEdges.Array...)
		if err := binning.Validate(); err != nil {
			return nil, err
		}
		out := make([]event.Variable, len(vars))
		for i, v := range vars {
			v.Binning = binning
			out[i] = v
		}
		vars = out
	}
	return vars, nil
}

// createOutput creates --out, or a new dated directory for script. An
// existing directory is an error so earlier results are never overwritten.
func createOutput(script string) (*output.Dir, error) {
	path := outPath
	if path == "" {
		path = output.DefaultPath(script, time.Now())
	}
	dir, err := output.Create(path)
	if err != nil {
		return nil, err
	}
	logger.Info("output directory", "dir", dir.Path)
	return dir, nil
}

func settings(a *config.Analysis, selection string) output.Settings {
	s := output.Settings{
		Luminosity: a.Luminosity,
		Weight:     a.Weight,
		Selection:  selection,
		Config:     configPath,
		Files:      make(map[string][]string),
	}
	for _, x := range a.Systematics.All() {
		s.Systematics = append(s.Systematics, x.Name)
	}
	for _, p := range a.Processes {
		s.Files[p.Name] = p.Files
	}
	return s
}

func init() {
	measureCmd.Flags().StringSliceVar(&measureVariables, "variable", nil, "measure only these variables")
	measureCmd.Flags().Var(&measureEdges, "edges", "override the bin edges of the measured variables")
	rootCmd.AddCommand(measureCmd)
}
