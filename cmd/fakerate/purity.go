package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/decibelcooper/fakerate/analysis"
)

var purityCmd = &cobra.Command{
	Use:   "purity",
	Short: "Measure the quark fraction of the fake-rate candidates in simulation",
	Long: `purity splits the simulated fake-rate candidates of every region and
prong multiplicity into quark-matched and gluon-matched ones and measures the
quark fraction in bins of each variable.

The fractions are stored as <region>_<prong>_<variable>.root, ready to be
used as purities by extract; the yields and figures of merit of the regions
are written to Q-G-Separation.txt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAnalysis()
		if err != nil {
			return err
		}
		if a.Separation == nil {
			return errors.New("configuration has no separation section")
		}
		qg := *a.Separation
		if qg.Variables, err = selectVariables(a, qg.Variables); err != nil {
			return err
		}

		dir, err := createOutput("Q-G-Separation")
		if err != nil {
			return err
		}
		if err := dir.WriteSettings(settings(a, qg.Base.Expression())); err != nil {
			return err
		}
		report, err := dir.Results("Q-G-Separation.txt")
		if err != nil {
			return err
		}
		defer report.Close()

		sp := &analysis.Separation{
			Settings: analysis.Settings{
				Luminosity:  a.Luminosity,
				Weight:      a.Weight,
				Systematics: a.Systematics,
			},
			Config:    &qg,
			Processes: analysis.FromConfig(a),
			Out:       dir,
			Report:    report,
			Log:       logger,
		}
		bar := newProgress(cmd.ErrOrStderr(), "purity", sp.Fills())
		sp.Progress = bar.Func()
		_, err = sp.Run(cmd.Context())
		bar.Wait()
		if err != nil {
			return err
		}
		logger.Info("quark fractions written", "dir", dir.Path)
		return report.Close()
	},
}

func init() {
	purityCmd.Flags().StringSliceVar(&measureVariables, "variable", nil, "measure only these variables")
	purityCmd.Flags().Var(&measureEdges, "edges", "override the bin edges of the measured variables")
	rootCmd.AddCommand(purityCmd)
}
