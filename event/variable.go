package event

import (
	"errors"
	"fmt"
	"sort"

	"go-hep.org/x/hep/hbook"
)

// Binning is either N regular bins between Low and High or explicit Edges.
type Binning struct {
	N     int       `yaml:"bins,omitempty"`
	Low   float64   `yaml:"low,omitempty"`
	High  float64   `yaml:"high,omitempty"`
	Edges []float64 `yaml:"edges,omitempty"`
}

func Regular(n int, low, high float64) Binning {
	return Binning{N: n, Low: low, High: high}
}

func Edges(edges ...float64) Binning {
	return Binning{Edges: append([]float64(nil), edges...)}
}

func (b Binning) Validate() error {
	if len(b.Edges) > 0 {
		if len(b.Edges) < 2 {
			return errors.New("event: binning needs at least two edges")
		}
		if !sort.SliceIsSorted(b.Edges, func(i, j int) bool { return b.Edges[i] < b.Edges[j] }) {
			return fmt.Errorf("event: bin edges %v are not increasing", b.Edges)
		}
		for i := 1; i < len(b.Edges); i++ {
			if b.Edges[i] == b.Edges[i-1] {
				return fmt.Errorf("event: duplicate bin edge %g", b.Edges[i])
			}
		}
		return nil
	}
	if b.N <= 0 {
		return fmt.Errorf("event: invalid number of bins %d", b.N)
	}
	if b.High <= b.Low {
		return fmt.Errorf("event: invalid range [%g, %g]", b.Low, b.High)
	}
	return nil
}

// Bins returns the number of bins.
func (b Binning) Bins() int {
	if len(b.Edges) > 0 {
		return len(b.Edges) - 1
	}
	return b.N
}

// BinEdges returns the N+1 bin edges.
func (b Binning) BinEdges() []float64 {
	if len(b.Edges) > 0 {
		return append([]float64(nil), b.Edges...)
	}
	edges := make([]float64, b.N+1)
	width := (b.High - b.Low) / float64(b.N)
	for i := range edges {
		edges[i] = b.Low + float64(i)*width
	}
	edges[b.N] = b.High
	return edges
}

// H1D returns an empty histogram with this binning.
func (b Binning) H1D() *hbook.H1D {
	if len(b.Edges) > 0 {
		return hbook.NewH1DFromEdges(b.Edges)
	}
	return hbook.NewH1D(b.N, b.Low, b.High)
}

// Variable is a quantity computed per event and the binning it is
// histogrammed with.
type Variable struct {
	Name    string
	Expr    string
	Title   string
	Unit    string
	Binning Binning
}

// Expression returns Expr, defaulting to the name of the variable.
func (v Variable) Expression() string {
	if v.Expr == "" {
		return v.Name
	}
	return v.Expr
}

// Label is the axis label of the variable.
func (v Variable) Label() string {
	title := v.Title
	if title == "" {
		title = v.Name
	}
	if v.Unit == "" {
		return title
	}
	return fmt.Sprintf("%s [%s]", title, v.Unit)
}
