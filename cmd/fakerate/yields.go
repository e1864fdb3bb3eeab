package main

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/decibelcooper/fakerate/analysis"
)

var yieldsCmd = &cobra.Command{
	Use:   "yields",
	Short: "Tabulate the weighted and unweighted yields of every process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAnalysis()
		if err != nil {
			return err
		}
		if a.Yields == nil {
			return errors.New("configuration has no yields section")
		}

		dir, err := createOutput("Yields")
		if err != nil {
			return err
		}
		if err := dir.WriteSettings(settings(a, a.Yields.Base.Expression())); err != nil {
			return err
		}
		results, err := dir.Results("yields.txt")
		if err != nil {
			return err
		}
		defer results.Close()

		procs := analysis.FromConfig(a)
		rows := len(analysis.YieldRows(a.Yields))
		bar := newProgress(cmd.ErrOrStderr(), "yields", 2*rows*len(procs))
		s := analysis.Settings{
			Luminosity:  a.Luminosity,
			Weight:      a.Weight,
			Systematics: a.Systematics,
			Progress:    bar.Func(),
		}
		w := io.MultiWriter(results, cmd.OutOrStdout())
		for _, weighted := range []bool{true, false} {
			if _, err = analysis.Yields(cmd.Context(), s, procs, a.Yields, weighted, w); err != nil {
				break
			}
		}
		bar.Wait()
		if err != nil {
			return err
		}
		return results.Close()
	},
}

func init() {
	rootCmd.AddCommand(yieldsCmd)
}
