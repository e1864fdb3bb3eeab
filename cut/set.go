package cut

import (
	"errors"
	"fmt"
)

// Set is an ordered collection of cuts with unique names.
type Set struct {
	names []string
	cuts  map[string]Cut
}

func NewSet(cuts ...Cut) (*Set, error) {
	s := &Set{cuts: make(map[string]Cut)}
	for _, c := range cuts {
		if err := s.Add(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) Add(c Cut) error {
	if c.name == "" {
		return fmt.Errorf("cut %q has no name", c.expr)
	}
	if _, dup := s.cuts[c.name]; dup {
		return fmt.Errorf("duplicate cut name %q", c.name)
	}
	s.names = append(s.names, c.name)
	s.cuts[c.name] = c
	return nil
}

func (s *Set) Get(name string) (Cut, bool) {
	c, ok := s.cuts[name]
	return c, ok
}

// Names returns the cut names in insertion order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Set) lookup(names []string) ([]Cut, error) {
	cuts := make([]Cut, len(names))
	for i, name := range names {
		c, ok := s.cuts[name]
		if !ok {
			return nil, fmt.Errorf("unknown cut %q", name)
		}
		cuts[i] = c
	}
	return cuts, nil
}

// All returns the conjunction of the named cuts.
func (s *Set) All(names ...string) (Cut, error) {
	cuts, err := s.lookup(names)
	if err != nil {
		return Cut{}, err
	}
	return All(cuts...), nil
}

// Any returns the disjunction of the named cuts.
func (s *Set) Any(names ...string) (Cut, error) {
	cuts, err := s.lookup(names)
	if err != nil {
		return Cut{}, err
	}
	return Any(cuts...), nil
}

// Validate checks the expression of every cut in the set.
func (s *Set) Validate() error {
	var errs []error
	for _, name := range s.names {
		if err := s.cuts[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cut %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
