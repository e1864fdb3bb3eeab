// Package syst describes systematic variations of simulated samples: an
// alternative tree, an extra event weight or an overall scale factor.
package syst

import (
	"fmt"

	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/expr"
)

type Kind int

const (
	Tree Kind = iota
	Weight
	Scale
)

func (k Kind) String() string {
	switch k {
	case Tree:
		return "tree"
	case Weight:
		return "weight"
	case Scale:
		return "scale"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Variation is one setting of a systematic.
type Variation struct {
	Name   string
	Title  string
	Kind   Kind
	Tree   string  // tree variations
	Weight string  // weight variations
	Scale  float64 // scale variations

	owner *Systematic
}

// Systematic returns the systematic the variation belongs to.
func (v *Variation) Systematic() *Systematic { return v.owner }

// Factor is the scale applied by the variation, 1 unless it is a scale
// variation.
func (v *Variation) Factor() float64 {
	if v.Kind != Scale {
		return 1
	}
	return v.Scale
}

func (v *Variation) String() string { return v.Name }

// Systematic groups a nominal variation with its up and down variations.
// A missing up or down falls back to the nominal.
type Systematic struct {
	Name    string
	Title   string
	Nominal *Variation

	up, down *Variation

	// OnlyRegions restricts the systematic to these regions when not empty.
	OnlyRegions []cut.Cut
	NotRegions  []cut.Cut
}

func newSystematic(name, title string, kind Kind, nominal, up, down *Variation) *Systematic {
	if title == "" {
		title = name
	}
	s := &Systematic{Name: name, Title: title, Nominal: nominal, up: up, down: down}
	for suffix, v := range map[string]*Variation{"_nominal": nominal, "_high": up, "_low": down} {
		if v == nil {
			continue
		}
		v.Name = name + suffix
		v.Kind = kind
		v.owner = s
	}
	nominal.Title = title + " (nominal)"
	if up != nil {
		up.Title = title + " (up)"
	}
	if down != nil {
		down.Title = title + " (down)"
	}
	return s
}

// TreeSystematic reads its variations from other trees. Empty up or down
// tree names leave that side at the nominal.
func TreeSystematic(name, title, upTree, downTree, nominalTree string) *Systematic {
	var up, down *Variation
	if upTree != "" {
		up = &Variation{Tree: upTree}
	}
	if downTree != "" {
		down = &Variation{Tree: downTree}
	}
	return newSystematic(name, title, Tree, &Variation{Tree: nominalTree}, up, down)
}

// WeightSystematic applies an extra weight expression. The nominal weight
// defaults to 1.
func WeightSystematic(name, title, upWeight, downWeight, nominalWeight string) *Systematic {
	var up, down *Variation
	if upWeight != "" {
		up = &Variation{Weight: upWeight}
	}
	if downWeight != "" {
		down = &Variation{Weight: downWeight}
	}
	if nominalWeight == "" {
		nominalWeight = "1"
	}
	return newSystematic(name, title, Weight, &Variation{Weight: nominalWeight}, up, down)
}

// ScaleSystematic scales the whole sample.
func ScaleSystematic(name, title string, up, down, nominal float64) *Systematic {
	return newSystematic(name, title, Scale,
		&Variation{Scale: nominal}, &Variation{Scale: up}, &Variation{Scale: down})
}

func (s *Systematic) Up() *Variation {
	if s.up != nil {
		return s.up
	}
	return s.Nominal
}

func (s *Systematic) Down() *Variation {
	if s.down != nil {
		return s.down
	}
	return s.Nominal
}

// OneSided reports whether only one of up and down differs from nominal.
func (s *Systematic) OneSided() bool {
	return s.Up() == s.Nominal || s.Down() == s.Nominal
}

// AppliesTo reports whether the systematic is used for the selection sel.
// A region matches the selections that are the region or were built from it
// with And.
func (s *Systematic) AppliesTo(sel cut.Cut) bool {
	if within(s.NotRegions, sel) {
		return false
	}
	return len(s.OnlyRegions) == 0 || within(s.OnlyRegions, sel)
}

func within(regions []cut.Cut, sel cut.Cut) bool {
	for _, r := range regions {
		if sel.Contains(r) {
			return true
		}
	}
	return false
}

func (s *Systematic) String() string {
	return fmt.Sprintf("%s: title=%s, nominal=%s, up=%s, down=%s", s.Name, s.Title, s.Nominal, s.Up(), s.Down())
}

// Key identifies the result of one systematic at one identification
// working point.
type Key struct {
	Systematic   string
	WorkingPoint string
}

// Set is an ordered collection of systematics with unique names.
type Set struct {
	list []*Systematic
}

func NewSet(systs ...*Systematic) (*Set, error) {
	s := &Set{}
	for _, x := range systs {
		if err := s.Add(x); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) Add(x *Systematic) error {
	if _, dup := s.Get(x.Name); dup {
		return fmt.Errorf("syst: duplicate systematic %q", x.Name)
	}
	s.list = append(s.list, x)
	return nil
}

func (s *Set) Get(name string) (*Systematic, bool) {
	if s == nil {
		return nil, false
	}
	for _, x := range s.list {
		if x.Name == name {
			return x, true
		}
	}
	return nil, false
}

// All returns the systematics in insertion order.
func (s *Set) All() []*Systematic {
	if s == nil {
		return nil
	}
	return append([]*Systematic(nil), s.list...)
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.list)
}

// Variations returns the nominal variation of every systematic that applies
// to region, with v in place of the nominal of its own systematic. v may be
// nil.
func (s *Set) Variations(v *Variation, region cut.Cut) []*Variation {
	var out []*Variation
	for _, x := range s.All() {
		if !x.AppliesTo(region) {
			continue
		}
		if v != nil && v.owner == x {
			out = append(out, v)
			continue
		}
		out = append(out, x.Nominal)
	}
	return out
}

// TotalWeight is the product of the weight expressions of Variations.
func (s *Set) TotalWeight(v *Variation, region cut.Cut) string {
	var factors []string
	for _, x := range s.Variations(v, region) {
		factors = append(factors, x.Weight)
	}
	return expr.Product(factors...)
}

// TotalScale is the product of the scale factors of Variations.
func (s *Set) TotalScale(v *Variation, region cut.Cut) float64 {
	f := 1.
	for _, x := range s.Variations(v, region) {
		f *= x.Factor()
	}
	return f
}

// TreeName returns the tree to read for v, or def when v does not change
// the tree.
func (s *Set) TreeName(v *Variation, def string) string {
	if v != nil && v.Kind == Tree && v.Tree != "" {
		return v.Tree
	}
	return def
}

// TreeNames returns the distinct tree names used by any variation.
func (s *Set) TreeNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, x := range s.All() {
		for _, v := range []*Variation{x.Nominal, x.Up(), x.Down()} {
			if v.Tree == "" || seen[v.Tree] {
				continue
			}
			seen[v.Tree] = true
			names = append(names, v.Tree)
		}
	}
	return names
}
