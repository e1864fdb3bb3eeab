package measure

import (
	"fmt"
	"math"
	"sort"
)

// Symmetrize is the mean absolute deviation of up and down from nominal.
func Symmetrize(nom, up, down float64) float64 {
	return (math.Abs(up-nom) + math.Abs(down-nom)) / 2
}

// BinWiseSyst returns a copy of nom whose errors are replaced by the
// symmetrised deviation of up and down. From then on the error field carries
// a systematic, not a statistical, uncertainty.
func BinWiseSyst(name string, nom, up, down *Measurement) (*Measurement, error) {
	if err := aligned(nom, up, down); err != nil {
		return nil, err
	}
	out := nom.Clone(name)
	for i := range out.Bins {
		out.Bins[i].Err = Symmetrize(nom.Bins[i].Val, up.Bins[i].Val, down.Bins[i].Val)
	}
	return out, nil
}

// AddBinWiseSyst adds the symmetrised deviation of up and down from nom to
// the errors of total, in quadrature.
func AddBinWiseSyst(total, nom, up, down *Measurement) error {
	syst, err := BinWiseSyst("", nom, up, down)
	if err != nil {
		return err
	}
	if err := aligned(total, syst); err != nil {
		return err
	}
	for i, b := range syst.Bins {
		total.Bins[i].Err = math.Hypot(total.Bins[i].Err, b.Err)
	}
	return nil
}

// WithVariation returns a copy of nom whose errors also cover the distance
// to an alternative measurement: err = sqrt(|nom-var|² + stat²).
func WithVariation(name string, nom, variation *Measurement) (*Measurement, error) {
	if err := aligned(nom, variation); err != nil {
		return nil, err
	}
	out := nom.Clone(name)
	for i := range out.Bins {
		diff := nom.Bins[i].Val - variation.Bins[i].Val
		out.Bins[i].Err = math.Hypot(diff, nom.Bins[i].Err)
	}
	return out, nil
}

// Envelope collects bin-wise systematics of a nominal measurement, one per
// named source.
type Envelope struct {
	nom     *Measurement
	sources map[string]*Measurement
}

func NewEnvelope(nom *Measurement) *Envelope {
	return &Envelope{nom: nom, sources: make(map[string]*Measurement)}
}

// Add records the systematic of source from its up and down variations.
func (e *Envelope) Add(source string, up, down *Measurement) error {
	if _, dup := e.sources[source]; dup {
		return fmt.Errorf("measure: systematic %q already in envelope of %q", source, e.nom.Name)
	}
	syst, err := BinWiseSyst(e.nom.Name+"_"+source, e.nom, up, down)
	if err != nil {
		return fmt.Errorf("measure: systematic %q: %w", source, err)
	}
	e.sources[source] = syst
	return nil
}

// Sources returns the source names, sorted.
func (e *Envelope) Sources() []string {
	names := make([]string, 0, len(e.sources))
	for name := range e.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source returns the bin-wise systematic of one source.
func (e *Envelope) Source(name string) (*Measurement, bool) {
	m, ok := e.sources[name]
	return m, ok
}

// Syst returns the nominal values with the quadrature sum of all sources as
// errors.
func (e *Envelope) Syst(name string) *Measurement {
	out := e.nom.Clone(name)
	for i := range out.Bins {
		out.Bins[i].Err = 0
	}
	e.accumulate(out)
	return out
}

// Total is like Syst but keeps the statistical error of the nominal in the
// quadrature sum.
func (e *Envelope) Total(name string) *Measurement {
	out := e.nom.Clone(name)
	e.accumulate(out)
	return out
}

func (e *Envelope) accumulate(out *Measurement) {
	for _, name := range e.Sources() {
		for i, b := range e.sources[name].Bins {
			out.Bins[i].Err = math.Hypot(out.Bins[i].Err, b.Err)
		}
	}
}
