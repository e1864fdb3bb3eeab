// Package event scans flat event records and fills histograms from them.
package event

import (
	"fmt"

	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/expr"
)

// Source is a sequence of event records.
type Source interface {
	// Scan calls fn for every record until fn returns an error. The record
	// is only valid during the call.
	Scan(fn func(expr.Record) error) error
}

// Table is an in-memory source.
type Table []expr.Map

func (t Table) Scan(fn func(expr.Record) error) error {
	for _, rec := range t {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Multi scans several sources one after the other.
type Multi []Source

func (m Multi) Scan(fn func(expr.Record) error) error {
	for _, src := range m {
		if err := src.Scan(fn); err != nil {
			return err
		}
	}
	return nil
}

// Fill histograms v for the records passing sel, each weighted by the
// weight expression. An empty weight is 1.
func Fill(src Source, v Variable, sel cut.Cut, weight string) (*hbook.H1D, error) {
	x, err := expr.Compile(v.Expression())
	if err != nil {
		return nil, fmt.Errorf("event: variable %q: %w", v.Name, err)
	}
	w, err := expr.Compile(expr.Product(weight))
	if err != nil {
		return nil, fmt.Errorf("event: weight: %w", err)
	}
	h := v.Binning.H1D()
	h.Annotation()["name"] = v.Name
	err = src.Scan(func(rec expr.Record) error {
		ok, err := sel.Eval(rec)
		if err != nil || !ok {
			return err
		}
		xv, err := x.Float(rec)
		if err != nil {
			return err
		}
		wv, err := w.Float(rec)
		if err != nil {
			return err
		}
		h.Fill(xv, wv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Count returns the weighted number of records passing sel.
func Count(src Source, sel cut.Cut, weight string) (float64, error) {
	sumw, _, err := Sums(src, sel, weight)
	return sumw, err
}

// Sums returns the sum of the weights, and of the squared weights, of the
// records passing sel.
func Sums(src Source, sel cut.Cut, weight string) (sumw, sumw2 float64, err error) {
	w, err := expr.Compile(expr.Product(weight))
	if err != nil {
		return 0, 0, fmt.Errorf("event: weight: %w", err)
	}
	err = src.Scan(func(rec expr.Record) error {
		ok, err := sel.Eval(rec)
		if err != nil || !ok {
			return err
		}
		wv, err := w.Float(rec)
		if err != nil {
			return err
		}
		sumw += wv
		sumw2 += wv * wv
		return nil
	})
	return sumw, sumw2, err
}
