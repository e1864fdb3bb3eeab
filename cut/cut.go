// Package cut builds event selections out of named boolean expressions.
//
// A Cut is a value: composing two cuts returns a new one and never changes
// its operands. Cuts are compared by expression text only, so two
// differently written but equivalent selections are distinct.
package cut

import (
	"strings"

	"github.com/decibelcooper/fakerate/expr"
)

type op int

const (
	leaf op = iota
	and
	or
)

// Cut is a named selection predicate over event fields.
type Cut struct {
	name  string
	title string
	expr  string
	op    op
	terms []Cut // operands of an And, spliced
	prog  *expr.Program
}

// None selects every event. It is the identity of And.
var None = New("NoCut", "No Cut", "1")

// New returns a leaf cut. The expression is not validated here; an invalid
// expression fails when the cut is evaluated.
func New(name, title, expression string) Cut {
	c := Cut{name: name, title: title, expr: strings.TrimSpace(expression)}
	if c.expr != "" {
		c.prog, _ = expr.Compile(c.expr)
	}
	return c
}

// Parse is like New but rejects expressions that do not parse.
func Parse(name, title, expression string) (Cut, error) {
	c := New(name, title, expression)
	if err := c.Validate(); err != nil {
		return Cut{}, err
	}
	return c, nil
}

// MustParse is like Parse but panics on invalid expressions.
func MustParse(name, title, expression string) Cut {
	c, err := Parse(name, title, expression)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Cut) Name() string       { return c.name }
func (c Cut) Title() string      { return c.title }
func (c Cut) Expression() string { return c.expr }
func (c Cut) String() string     { return c.expr }

// Key is the identity of the cut for maps: its expression.
func (c Cut) Key() string { return c.expr }

// Equal reports whether both cuts have the same expression text.
func (c Cut) Equal(o Cut) bool { return c.expr == o.expr }

// Named returns a copy of c with another name and title.
func (c Cut) Named(name, title string) Cut {
	c.name = name
	c.title = title
	return c
}

func (c Cut) empty() bool { return c.expr == "" }

func (c Cut) always() bool { return c.expr == "1" }

// And returns the conjunction of c and o.
func (c Cut) And(o Cut) Cut {
	switch {
	case c.empty() || c.always():
		return o
	case o.empty() || o.always():
		return c
	}
	return compose(and, c, o)
}

// Or returns the disjunction of c and o.
func (c Cut) Or(o Cut) Cut {
	switch {
	case c.empty():
		return o
	case o.empty():
		return c
	}
	return compose(or, c, o)
}

// All is the conjunction of cuts; All() is None.
func All(cuts ...Cut) Cut {
	res := None
	for _, c := range cuts {
		res = res.And(c)
	}
	return res
}

// Any is the disjunction of cuts; Any() selects nothing.
func Any(cuts ...Cut) Cut {
	var res Cut
	for _, c := range cuts {
		res = res.Or(c)
	}
	if res.empty() {
		return New("Nothing", "Nothing", "0")
	}
	return res
}

func compose(kind op, a, b Cut) Cut {
	sym, sep, titleSep := " && ", "_", ", "
	if kind == or {
		sym, sep, titleSep = " || ", "_or_", " or "
	}
	c := Cut{
		name:  a.name + sep + b.name,
		title: a.title + titleSep + b.title,
		expr:  operand(kind, a) + sym + operand(kind, b),
		op:    kind,
	}
	if kind == and {
		c.terms = append(a.Conjuncts(), b.Conjuncts()...)
	}
	c.prog, _ = expr.Compile(c.expr)
	return c
}

// Conjuncts returns the cuts c was built from with And, or c alone.
func (c Cut) Conjuncts() []Cut {
	if c.op == and {
		return append([]Cut(nil), c.terms...)
	}
	return []Cut{c}
}

// Contains reports whether c is r or was built with And from r, or from
// every conjunct of r. Conjuncts are compared like Equal.
func (c Cut) Contains(r Cut) bool {
	if c.Equal(r) {
		return true
	}
	have := c.Conjuncts()
	for _, x := range r.Conjuncts() {
		found := false
		for _, y := range have {
			if x.Equal(y) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// operand splices compounds of the same kind, which keeps composition
// associative, and parenthesises everything else at most once.
func operand(kind op, c Cut) string {
	if c.op == kind || expr.IsOperand(c.expr) || expr.Enclosed(c.expr) {
		return c.expr
	}
	return "(" + c.expr + ")"
}

// Validate reports a syntax error in the expression.
func (c Cut) Validate() error {
	if c.prog == nil {
		return nil
	}
	return c.prog.Err()
}

// Eval evaluates the cut against rec. The empty cut accepts everything.
// Failures are *expr.EvaluationError.
func (c Cut) Eval(rec expr.Record) (bool, error) {
	if c.prog == nil {
		return true, nil
	}
	return c.prog.Bool(rec)
}

// Fields returns the names of the fields the cut reads.
func (c Cut) Fields() []string {
	if c.prog == nil {
		return nil
	}
	return c.prog.Fields()
}
