package measure

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
)

// DegenerateBinError reports a bin where both regions have the same purity,
// so the quark and gluon fake rates cannot be separated. It is returned
// alongside a zero result and is meant to be logged, not to stop a run.
type DegenerateBinError struct {
	Bin    string
	Flavor string
	Q1, Q2 float64
}

func (e *DegenerateBinError) Error() string {
	return fmt.Sprintf("measure: %s denominator is 0 in %s (q1 = %g, q2 = %g)", e.Flavor, e.Bin, e.Q1, e.Q2)
}

// QuarkFakeRate solves for the fake rate of quark-initiated jets given the
// fake rates f1, f2 and quark fractions q1, q2 measured in two regions. The
// four inputs are treated as independent.
func QuarkFakeRate(f1, q1, f2, q2 Value) (Value, error) {
	denom := q1.Val - q2.Val
	if denom == 0 {
		return Value{}, &DegenerateBinError{Flavor: "quark", Q1: q1.Val, Q2: q2.Val}
	}
	val := ((1-q2.Val)*f1.Val - (1-q1.Val)*f2.Val) / denom
	df := (f1.Val - f2.Val) / (denom * denom)
	return Value{
		Val: val,
		Err: propagate(
			[]float64{(1 - q2.Val) / denom, (q1.Val - 1) / denom, (q2.Val - 1) * df, (1 - q1.Val) * df},
			[]float64{f1.Err, f2.Err, q1.Err, q2.Err},
		),
	}, nil
}

// GluonFakeRate is the gluon counterpart of QuarkFakeRate.
func GluonFakeRate(f1, q1, f2, q2 Value) (Value, error) {
	denom := q2.Val - q1.Val
	if denom == 0 {
		return Value{}, &DegenerateBinError{Flavor: "gluon", Q1: q1.Val, Q2: q2.Val}
	}
	val := (q2.Val*f1.Val - q1.Val*f2.Val) / denom
	df := (f1.Val - f2.Val) / (denom * denom)
	return Value{
		Val: val,
		Err: propagate(
			[]float64{q2.Val / denom, -q1.Val / denom, q2.Val * df, -q1.Val * df},
			[]float64{f1.Err, f2.Err, q1.Err, q2.Err},
		),
	}, nil
}

// propagate returns the first order error from the partial derivatives and
// the errors of independent inputs.
func propagate(partials, errs []float64) float64 {
	floats.Mul(partials, errs)
	return floats.Norm(partials, 2)
}

// Combiner applies the quark/gluon solution to whole measurements.
// Degenerate bins are set to zero and logged as warnings.
type Combiner struct {
	Log *slog.Logger
}

func (c Combiner) Quark(name string, fr1, q1, fr2, q2 *Measurement) (*Measurement, error) {
	return c.combine(name, fr1, q1, fr2, q2, QuarkFakeRate)
}

func (c Combiner) Gluon(name string, fr1, q1, fr2, q2 *Measurement) (*Measurement, error) {
	return c.combine(name, fr1, q1, fr2, q2, GluonFakeRate)
}

func (c Combiner) combine(name string, fr1, q1, fr2, q2 *Measurement, solve func(f1, q1, f2, q2 Value) (Value, error)) (*Measurement, error) {
	if err := aligned(fr1, q1, fr2, q2); err != nil {
		return nil, err
	}
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	out := fr1.Clone(name)
	for i := range out.Bins {
		v, err := solve(fr1.Bins[i], q1.Bins[i], fr2.Bins[i], q2.Bins[i])
		if err != nil {
			var deg *DegenerateBinError
			if !errors.As(err, &deg) {
				return nil, err
			}
			deg.Bin = fmt.Sprintf("%s Bin %d", name, i+1)
			log.Warn("degenerate bin", "bin", deg.Bin, "flavor", deg.Flavor, "q1", deg.Q1, "q2", deg.Q2)
		}
		out.Bins[i] = v
	}
	return out, nil
}
