package event

import (
	"fmt"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/decibelcooper/fakerate/expr"
)

// Tree reads the tree Name from each of Files in turn. Scalar branches of
// any numeric or boolean type are exposed as float64 fields; other branches
// are not read.
type Tree struct {
	Files []string
	Name  string
}

func (t Tree) Scan(fn func(expr.Record) error) error {
	for _, fname := range t.Files {
		if err := t.scan(fname, fn); err != nil {
			return err
		}
	}
	return nil
}

func (t Tree) scan(fname string, fn func(expr.Record) error) error {
	f, err := groot.Open(fname)
	if err != nil {
		return fmt.Errorf("event: could not open %q: %w", fname, err)
	}
	defer f.Close()

	obj, err := riofs.Dir(f).Get(t.Name)
	if err != nil {
		return fmt.Errorf("event: could not find tree %q in %q: %w", t.Name, fname, err)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		return fmt.Errorf("event: %q in %q is a %s, not a tree", t.Name, fname, obj.Class())
	}

	rec := newRow(rtree.NewReadVars(tree))
	r, err := rtree.NewReader(tree, rec.vars)
	if err != nil {
		return fmt.Errorf("event: could not read tree %q in %q: %w", t.Name, fname, err)
	}
	defer r.Close()

	return r.Read(func(rtree.RCtx) error {
		return fn(rec)
	})
}

// row is the current entry of a tree.
type row struct {
	vars  []rtree.ReadVar
	index map[string]int
}

func newRow(all []rtree.ReadVar) *row {
	r := &row{index: make(map[string]int)}
	for _, rv := range all {
		if !scalar(rv.Value) {
			continue
		}
		r.index[rv.Name] = len(r.vars)
		r.vars = append(r.vars, rv)
	}
	return r
}

func scalar(v any) bool {
	switch v.(type) {
	case *bool, *int8, *int16, *int32, *int64, *uint8, *uint16, *uint32, *uint64, *float32, *float64:
		return true
	}
	return false
}

func (r *row) Field(name string) (float64, bool) {
	i, ok := r.index[name]
	if !ok {
		return 0, false
	}
	switch v := r.vars[i].Value.(type) {
	case *bool:
		if *v {
			return 1, true
		}
		return 0, true
	case *int8:
		return float64(*v), true
	case *int16:
		return float64(*v), true
	case *int32:
		return float64(*v), true
	case *int64:
		return float64(*v), true
	case *uint8:
		return float64(*v), true
	case *uint16:
		return float64(*v), true
	case *uint32:
		return float64(*v), true
	case *uint64:
		return float64(*v), true
	case *float32:
		return float64(*v), true
	case *float64:
		return *v, true
	}
	return 0, false
}
