package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/decibelcooper/fakerate/analysis"
)

var datamcCmd = &cobra.Command{
	Use:   "datamc",
	Short: "Plot data against the stacked simulation",
	Long: `datamc fills every configured variable for all processes after the
datamc selection and draws the data over the stacked simulated processes,
with the data/MC ratio below. The ratios are stored as <variable>_DataMC.root.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAnalysis()
		if err != nil {
			return err
		}
		if a.DataMC == nil {
			return errors.New("configuration has no datamc section")
		}
		cmp := *a.DataMC
		if cmp.Variables, err = selectVariables(a, cmp.Variables); err != nil {
			return err
		}

		dir, err := createOutput("DataMC")
		if err != nil {
			return err
		}
		if err := dir.WriteSettings(settings(a, cmp.Selection.Expression())); err != nil {
			return err
		}

		dm := &analysis.DataMC{
			Settings: analysis.Settings{
				Luminosity:  a.Luminosity,
				Weight:      a.Weight,
				Systematics: a.Systematics,
			},
			Config:    &cmp,
			Processes: analysis.FromConfig(a),
			Out:       dir,
			Log:       logger,
		}
		bar := newProgress(cmd.ErrOrStderr(), "datamc", dm.Fills())
		dm.Progress = bar.Func()
		_, err = dm.Run(cmd.Context())
		bar.Wait()
		if err != nil {
			return err
		}
		logger.Info("comparisons written", "dir", dir.Path)
		return nil
	},
}

func init() {
	datamcCmd.Flags().StringSliceVar(&measureVariables, "variable", nil, "plot only these variables")
	datamcCmd.Flags().Var(&measureEdges, "edges", "override the bin edges of the plotted variables")
	rootCmd.AddCommand(datamcCmd)
}
