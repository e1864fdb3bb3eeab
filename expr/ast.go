// Package expr implements the small expression language selections and
// weights are written in. It follows the conventions of ROOT's TTree::Draw
// formulas: every value is a float64, non-zero is true, comparisons and
// logical operators yield 1 or 0.
package expr

import (
	"strconv"
	"strings"
)

// Node is an element of a parsed expression.
type Node interface {
	String() string
	node()
}

// Number is a numeric literal or a named constant.
type Number struct {
	Value float64
	Text  string
}

// Ident references a field of the record being evaluated.
type Ident struct {
	Name string
}

// Unary is one of !x, -x and +x.
type Unary struct {
	Op string
	X  Node
}

// Binary is an arithmetic, comparison or logical operation.
type Binary struct {
	Op   string
	X, Y Node
}

// Call is a call of one of the builtin functions.
type Call struct {
	Func string
	Args []Node
}

func (*Number) node() {}
func (*Ident) node()  {}
func (*Unary) node()  {}
func (*Binary) node() {}
func (*Call) node()   {}

func (n *Number) String() string {
	if n.Text != "" {
		return n.Text
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *Ident) String() string { return n.Name }

func (n *Unary) String() string { return n.Op + "(" + n.X.String() + ")" }

func (n *Binary) String() string {
	return "(" + n.X.String() + " " + n.Op + " " + n.Y.String() + ")"
}

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Func + "(" + strings.Join(args, ", ") + ")"
}

// Walk calls fn for n and every node below it, depth first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch n := n.(type) {
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}
