// Package measure holds binned (value, error) measurements and the
// arithmetic used to derive fake rates, scale factors and their
// systematic uncertainties from them.
package measure

import (
	"errors"
	"fmt"
	"math"

	"go-hep.org/x/hep/hbook"
)

// ErrMisaligned is returned when measurements combined bin by bin do not
// have the same number of bins.
var ErrMisaligned = errors.New("measure: misaligned bins")

// Value is the content of one bin.
type Value struct {
	Val float64
	Err float64
}

func (v Value) String() string { return fmt.Sprintf("%g ± %g", v.Val, v.Err) }

// Measurement is an ordered sequence of bins. Edges, when set, has one more
// entry than Bins.
type Measurement struct {
	Name  string
	Edges []float64
	Bins  []Value
}

func New(name string, edges []float64) *Measurement {
	n := len(edges) - 1
	if n < 0 {
		n = 0
	}
	return &Measurement{
		Name:  name,
		Edges: append([]float64(nil), edges...),
		Bins:  make([]Value, n),
	}
}

// FromH1D reads the in-range bins of h: the value is the sum of weights and
// the error the square root of the sum of squared weights.
func FromH1D(name string, h *hbook.H1D) *Measurement {
	bins := h.Binning.Bins
	m := &Measurement{
		Name:  name,
		Edges: make([]float64, 0, len(bins)+1),
		Bins:  make([]Value, len(bins)),
	}
	for i, bin := range bins {
		m.Edges = append(m.Edges, bin.XMin())
		m.Bins[i] = Value{Val: bin.SumW(), Err: math.Sqrt(bin.SumW2())}
	}
	if len(bins) > 0 {
		m.Edges = append(m.Edges, bins[len(bins)-1].XMax())
	}
	return m
}

// FromS2D reads a scatter whose x errors span the bins. Asymmetric y errors
// are averaged.
func FromS2D(name string, s *hbook.S2D) *Measurement {
	n := s.Len()
	m := &Measurement{
		Name:  name,
		Edges: make([]float64, 0, n+1),
		Bins:  make([]Value, n),
	}
	for i := 0; i < n; i++ {
		pt := s.Point(i)
		m.Edges = append(m.Edges, pt.X-pt.ErrX.Min)
		m.Bins[i] = Value{Val: pt.Y, Err: 0.5 * (pt.ErrY.Min + pt.ErrY.Max)}
		if i == n-1 {
			m.Edges = append(m.Edges, pt.X+pt.ErrX.Max)
		}
	}
	return m
}

// S2D returns the measurement as a scatter with points at the bin centres.
func (m *Measurement) S2D() *hbook.S2D {
	pts := make([]hbook.Point2D, len(m.Bins))
	for i, b := range m.Bins {
		lo, hi := m.Bin(i)
		x := 0.5 * (lo + hi)
		pts[i] = hbook.Point2D{
			X:    x,
			Y:    b.Val,
			ErrX: hbook.Range{Min: x - lo, Max: hi - x},
			ErrY: hbook.Range{Min: b.Err, Max: b.Err},
		}
	}
	s := hbook.NewS2D(pts...)
	s.Annotation()["name"] = m.Name
	return s
}

func (m *Measurement) Len() int { return len(m.Bins) }

// Bin returns the edges of bin i. Without edges, bin i spans [i, i+1).
func (m *Measurement) Bin(i int) (lo, hi float64) {
	if len(m.Edges) == len(m.Bins)+1 {
		return m.Edges[i], m.Edges[i+1]
	}
	return float64(i), float64(i + 1)
}

func (m *Measurement) Clone(name string) *Measurement {
	return &Measurement{
		Name:  name,
		Edges: append([]float64(nil), m.Edges...),
		Bins:  append([]Value(nil), m.Bins...),
	}
}

// Integral sums the bin values, with errors added in quadrature.
func (m *Measurement) Integral() Value {
	var sum, err2 float64
	for _, b := range m.Bins {
		sum += b.Val
		err2 += b.Err * b.Err
	}
	return Value{Val: sum, Err: math.Sqrt(err2)}
}

// Scale multiplies values and errors by f.
func (m *Measurement) Scale(f float64) {
	for i := range m.Bins {
		m.Bins[i].Val *= f
		m.Bins[i].Err *= math.Abs(f)
	}
}

// Add adds scale times o to m in place. Errors add in quadrature.
func (m *Measurement) Add(o *Measurement, scale float64) error {
	if err := aligned(m, o); err != nil {
		return err
	}
	for i, b := range o.Bins {
		m.Bins[i].Val += scale * b.Val
		m.Bins[i].Err = math.Hypot(m.Bins[i].Err, scale*b.Err)
	}
	return nil
}

func aligned(ms ...*Measurement) error {
	for _, m := range ms[1:] {
		if len(m.Bins) != len(ms[0].Bins) {
			return fmt.Errorf("%w: %q has %d bins, %q has %d",
				ErrMisaligned, ms[0].Name, len(ms[0].Bins), m.Name, len(m.Bins))
		}
	}
	return nil
}
