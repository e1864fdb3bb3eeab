package main

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/decibelcooper/fakerate/analysis"
	"github.com/decibelcooper/fakerate/cut"
)

var cutflowCmd = &cobra.Command{
	Use:   "cutflow",
	Short: "Count the events of every process left after each cut",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAnalysis()
		if err != nil {
			return err
		}
		if len(a.Cutflow) == 0 {
			return errors.New("configuration has no cutflow")
		}

		dir, err := createOutput("Cutflow")
		if err != nil {
			return err
		}
		if err := dir.WriteSettings(settings(a, cut.All(a.Cutflow...).Expression())); err != nil {
			return err
		}
		results, err := dir.Results("Cutflow.txt")
		if err != nil {
			return err
		}
		defer results.Close()

		procs := analysis.FromConfig(a)
		bar := newProgress(cmd.ErrOrStderr(), "cutflow", len(procs)*len(a.Cutflow))
		s := analysis.Settings{
			Luminosity:  a.Luminosity,
			Weight:      a.Weight,
			Systematics: a.Systematics,
			Progress:    bar.Func(),
		}
		_, err = analysis.Cutflow(cmd.Context(), s, procs, a.Cutflow, io.MultiWriter(results, cmd.OutOrStdout()))
		bar.Wait()
		if err != nil {
			return err
		}
		return results.Close()
	},
}

func init() {
	rootCmd.AddCommand(cutflowCmd)
}
