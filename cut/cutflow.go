package cut

import "fmt"

// Step is one line of a cut flow.
type Step struct {
	Cut       Cut     // the cut added at this step
	Selection Cut     // all cuts applied so far
	Yield     float64 // weighted events left
	Lost      float64 // percentage lost with respect to the previous step
}

func (s Step) String() string {
	return fmt.Sprintf("%g left\t(%.2f%% lost)\tafter application of: %s", s.Yield, s.Lost, s.Cut.Name())
}

// Flow applies cuts one after the other and counts the events left after
// each step. The first step loses nothing by definition.
func Flow(cuts []Cut, count func(Cut) (float64, error)) ([]Step, error) {
	steps := make([]Step, 0, len(cuts))
	sel := None
	for i, c := range cuts {
		sel = sel.And(c)
		n, err := count(sel)
		if err != nil {
			return steps, fmt.Errorf("cut flow step %q: %w", c.Name(), err)
		}
		lost := 0.
		if i > 0 && steps[i-1].Yield > 0 {
			lost = 100 * (1 - n/steps[i-1].Yield)
		}
		steps = append(steps, Step{Cut: c, Selection: sel, Yield: n, Lost: lost})
	}
	return steps, nil
}
