package measure

import "math"

// Ratio divides two independent values. A zero denominator gives (0, 0).
func Ratio(n, d Value) Value {
	if d.Val == 0 {
		return Value{}
	}
	r := n.Val / d.Val
	d2 := d.Val * d.Val
	err2 := (n.Err*n.Err*d2 + d.Err*d.Err*n.Val*n.Val) / (d2 * d2)
	return Value{Val: r, Err: math.Sqrt(err2)}
}

// BinomialRatio divides a value by another one it is a subset of.
// A zero denominator gives (0, 0).
func BinomialRatio(n, d Value) Value {
	if d.Val == 0 {
		return Value{}
	}
	r := n.Val / d.Val
	err2 := ((1-2*r)*n.Err*n.Err + r*r*d.Err*d.Err) / (d.Val * d.Val)
	return Value{Val: r, Err: math.Sqrt(math.Abs(err2))}
}

// Divide returns num/den bin by bin with independent errors. Use it for
// ratios of unrelated samples such as data over simulation.
func Divide(name string, num, den *Measurement) (*Measurement, error) {
	return divide(name, num, den, Ratio)
}

// DivideBinomial returns num/den bin by bin with binomial errors. num must
// be a subset of den, as for identified over reconstructed objects.
func DivideBinomial(name string, num, den *Measurement) (*Measurement, error) {
	return divide(name, num, den, BinomialRatio)
}

func divide(name string, num, den *Measurement, ratio func(n, d Value) Value) (*Measurement, error) {
	if err := aligned(num, den); err != nil {
		return nil, err
	}
	out := num.Clone(name)
	for i := range out.Bins {
		out.Bins[i] = ratio(num.Bins[i], den.Bins[i])
	}
	return out, nil
}
