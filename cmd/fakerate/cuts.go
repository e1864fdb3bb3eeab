package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/expr"
)

var evalPath string

var cutsCmd = &cobra.Command{
	Use:   "cuts [name...]",
	Short: "List and check the cuts of the configuration",
	Long: `cuts prints the named cuts, or all of them, with their expressions and
the fields they read. With --eval, every cut is also evaluated on the records
of a YAML file holding a list of field maps, one line per record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAnalysis()
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = a.Cuts.Names()
		}
		cuts := make([]cut.Cut, 0, len(names))
		for _, name := range names {
			c, ok := a.Cuts.Get(name)
			if !ok {
				return fmt.Errorf("unknown cut %q", name)
			}
			cuts = append(cuts, c)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTITLE\tFIELDS\tEXPRESSION")
		for _, c := range cuts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name(), c.Title(), strings.Join(c.Fields(), ","), c.Expression())
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if err := a.Cuts.Validate(); err != nil {
			return err
		}
		if evalPath == "" {
			return nil
		}

		records, err := readRecords(evalPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return truthTable(tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0), cuts, records)
	},
}

func readRecords(path string) ([]expr.Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	records := make([]expr.Map, len(raw))
	for i, fields := range raw {
		rec := make(expr.Map, len(fields))
		for name, v := range fields {
			x, err := field(v)
			if err != nil {
				return nil, fmt.Errorf("%s: record %d: field %s: %w", path, i, name, err)
			}
			rec[name] = x
		}
		records[i] = rec
	}
	return records, nil
}

// field converts a decoded YAML scalar the way tree branches are read:
// numbers as float64, booleans as 1 or 0.
func field(v any) (float64, error) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, fmt.Errorf("not a number or boolean: %v", v)
}

func truthTable(w *tabwriter.Writer, cuts []cut.Cut, records []expr.Map) error {
	fmt.Fprint(w, "RECORD")
	for _, c := range cuts {
		fmt.Fprintf(w, "\t%s", c.Name())
	}
	fmt.Fprintln(w)
	for i, rec := range records {
		fmt.Fprintf(w, "%d", i)
		for _, c := range cuts {
			ok, err := c.Eval(rec)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			fmt.Fprintf(w, "\t%t", ok)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func init() {
	cutsCmd.Flags().StringVar(&evalPath, "eval", "", "YAML file of records to evaluate the cuts on")
	rootCmd.AddCommand(cutsCmd)
}
