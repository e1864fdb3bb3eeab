package fakerate

import (
	"math"
	"strconv"

	"gonum.org/v1/plot"
)

// PreciseTicks puts labelled ticks on round steps of a power of ten, with
// unlabelled minor ticks in between. Labels carry no more digits than the
// step needs.
type PreciseTicks struct {
	NSuggestedTicks int
}

func (t PreciseTicks) Ticks(min, max float64) []plot.Tick {
	if !(max > min) {
		return nil
	}
	n := t.NSuggestedTicks
	if n < 2 {
		n = 4
	}

	mult, exp := majorStep(max-min, n)
	step := float64(mult) * math.Pow10(exp)
	div := minorDivisions(mult)
	minor := step / float64(div)
	eps := minor * 1e-9

	var ticks []plot.Tick
	for k := math.Ceil((min - eps) / minor); k*minor <= max+eps; k++ {
		v := round(k*minor, -exp+1)
		if math.Mod(k, float64(div)) != 0 {
			ticks = append(ticks, plot.Tick{Value: v})
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'g', -1, 64)})
	}
	return ticks
}

// majorStep returns the step between labelled ticks as mult·10^exp, giving
// roughly n ticks over span.
func majorStep(span float64, n int) (mult, exp int) {
	exp = int(math.Floor(math.Log10(span)))
	for span/math.Pow10(exp) < float64(n-1) {
		exp--
	}
	mult = int(span / math.Pow10(exp) / float64(n-1))
	switch mult {
	case 0:
		mult = 1
	case 7:
		mult = 6
	case 9:
		mult = 8
	}
	return mult, exp
}

func minorDivisions(mult int) int {
	switch mult {
	case 3, 6:
		return 3
	case 5:
		return 5
	}
	return 2
}

// round rounds x to prec decimal digits.
func round(x float64, prec int) float64 {
	if prec < 0 {
		prec = 0
	}
	pow := math.Pow10(prec)
	v := math.Round(x*pow) / pow
	if v == 0 {
		return 0
	}
	return v
}
