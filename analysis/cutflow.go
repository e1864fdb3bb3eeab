package analysis

import (
	"context"
	"fmt"
	"io"

	"github.com/decibelcooper/fakerate/cut"
)

// Cutflow counts the events of every process left after each cut and writes
// one block per process to w.
func Cutflow(ctx context.Context, s Settings, procs []Process, cuts []cut.Cut, w io.Writer) (map[string][]cut.Step, error) {
	flows := make(map[string][]cut.Step, len(procs))
	for _, p := range procs {
		steps, err := cut.Flow(cuts, func(sel cut.Cut) (float64, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			n, err := p.Count(s, sel)
			s.progress()
			return n, err
		})
		if err != nil {
			return nil, fmt.Errorf("analysis: %s: %w", p.Name, err)
		}
		flows[p.Name] = steps

		if _, err := fmt.Fprintf(w, "\nProcess: %s\n", p.Title); err != nil {
			return nil, err
		}
		for _, step := range steps {
			if _, err := fmt.Fprintln(w, step); err != nil {
				return nil, err
			}
		}
	}
	return flows, nil
}
