package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/decibelcooper/fakerate/analysis"
	"github.com/decibelcooper/fakerate/event"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Separate stored data fake rates into quark and gluon fake rates",
	Long: `extract reads the data fake rates stored by measure for a quark-enriched
and a gluon-enriched region, together with the quark fraction of each
region, and solves for the fake rates of quark and gluon jets. Bins where
both regions have the same quark fraction are reported and set to zero.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAnalysis()
		if err != nil {
			return err
		}
		if a.Extract == nil {
			return errors.New("configuration has no extract section")
		}
		v, ok := a.Variable(a.Extract.Variable)
		if !ok {
			v = event.Variable{Name: a.Extract.Variable}
		}

		dir, err := createOutput("Extract_QG_FakeRates")
		if err != nil {
			return err
		}
		x := &analysis.Extract{
			Config:     a.Extract,
			Variable:   v,
			Luminosity: a.Luminosity,
			Out:        dir,
			Log:        logger,
		}
		flavors, err := x.Run(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, f := range flavors {
			fmt.Fprintf(w, "%s\n", f.Name)
			for i := range f.Quark.Bins {
				lo, hi := f.Quark.Bin(i)
				fmt.Fprintf(w, "  [%g, %g)\tquark: %v\tgluon: %v\n", lo, hi, f.Quark.Bins[i], f.Gluon.Bins[i])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
