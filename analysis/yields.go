package analysis

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/measure"
)

// Yield returns the number of events of p passing sel with its statistical
// error. Weighted simulation is weighted and normalized like Histogram,
// anything else is counted event by event.
func (p Process) Yield(s Settings, sel cut.Cut, weighted bool) (measure.Value, error) {
	weight, scale := "", 1.
	if weighted && !p.Data {
		weight, scale = s.weight(p, nil, sel), s.scale(p, nil, sel)
	}
	sumw, sumw2, err := event.Sums(p.Open(p.Tree), sel, weight)
	if err != nil {
		return measure.Value{}, fmt.Errorf("analysis: %s: %w", p.Name, err)
	}
	return measure.Value{Val: scale * sumw, Err: scale * math.Sqrt(sumw2)}, nil
}

// YieldRow holds the yields of every process after one selection.
type YieldRow struct {
	Title  string
	Cut    cut.Cut
	Yields map[string]measure.Value // by process name
	MC     measure.Value            // simulation summed, errors in quadrature
}

// YieldRows returns the selections of a yield table: nothing, the base
// selection, then the base selection with each extra cut.
func YieldRows(t *config.YieldTable) []YieldRow {
	rows := []YieldRow{
		{Title: "Without Selection", Cut: cut.None},
		{Title: "Base Selection", Cut: t.Base},
	}
	for _, c := range t.Selections {
		rows = append(rows, YieldRow{Title: "Additional Selection: " + c.Name(), Cut: t.Base.And(c)})
	}
	return rows
}

// Yields counts every process after each selection of t and writes the
// table to w.
func Yields(ctx context.Context, s Settings, procs []Process, t *config.YieldTable, weighted bool, w io.Writer) ([]YieldRow, error) {
	header := "Unweighted Yields\n------------------\n\n"
	if weighted {
		header = "Weighted Yields\n----------------\n\n"
	}
	if _, err := io.WriteString(w, header); err != nil {
		return nil, err
	}

	rows := YieldRows(t)
	for i := range rows {
		row := &rows[i]
		row.Yields = make(map[string]measure.Value, len(procs))
		if _, err := fmt.Fprintf(w, "%s\nYields (value, uncertainty):\n", row.Title); err != nil {
			return nil, err
		}
		var mcErr2 float64
		for _, p := range procs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			y, err := p.Yield(s, row.Cut, weighted)
			if err != nil {
				return nil, err
			}
			s.progress()
			row.Yields[p.Name] = y
			if !p.Data {
				row.MC.Val += y.Val
				mcErr2 += y.Err * y.Err
			}
			if _, err := fmt.Fprintf(w, "%s:\t\t%g +- %.4g\n", p.Name, y.Val, y.Err); err != nil {
				return nil, err
			}
		}
		row.MC.Err = math.Sqrt(mcErr2)
		if _, err := fmt.Fprintf(w, "MC sum: %g +- %.4g\n\n", row.MC.Val, row.MC.Err); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
