package expr

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownField is wrapped by every EvaluationError caused by a name
// the record does not provide.
var ErrUnknownField = errors.New("unknown field")

// Record is a row of named numeric fields, e.g. one entry of an ntuple.
type Record interface {
	Field(name string) (float64, bool)
}

// Map is the simplest Record.
type Map map[string]float64

func (m Map) Field(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// SyntaxError reports an expression that cannot be parsed.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d in %q: %s", e.Pos, e.Expr, e.Msg)
}

// EvaluationError reports an expression that could not be evaluated
// against a record. Field is set when the failure is a missing field.
type EvaluationError struct {
	Expr  string
	Field string
	Err   error
}

func (e *EvaluationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("evaluating %q: %v %q", e.Expr, e.Err, e.Field)
	}
	return fmt.Sprintf("evaluating %q: %v", e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

type builtin struct {
	arity int
	fn    func(args []float64) float64
}

var builtins = map[string]builtin{
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"fabs":  {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"log":   {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"log10": {1, func(a []float64) float64 { return math.Log10(a[0]) }},
	"sin":   {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":   {1, func(a []float64) float64 { return math.Tan(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"atan2": {2, func(a []float64) float64 { return math.Atan2(a[0], a[1]) }},
	"min":   {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func eval(n Node, rec Record) (float64, error) {
	switch n := n.(type) {
	case *Number:
		return n.Value, nil
	case *Ident:
		v, ok := rec.Field(n.Name)
		if !ok {
			return 0, &EvaluationError{Field: n.Name, Err: ErrUnknownField}
		}
		return v, nil
	case *Unary:
		x, err := eval(n.X, rec)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case "!":
			return truth(x == 0), nil
		case "-":
			return -x, nil
		}
		return x, nil
	case *Binary:
		x, err := eval(n.X, rec)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case "&&":
			if x == 0 {
				return 0, nil
			}
		case "||":
			if x != 0 {
				return 1, nil
			}
		}
		y, err := eval(n.Y, rec)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case "&&", "||":
			return truth(y != 0), nil
		case "==":
			return truth(x == y), nil
		case "!=":
			return truth(x != y), nil
		case "<":
			return truth(x < y), nil
		case "<=":
			return truth(x <= y), nil
		case ">":
			return truth(x > y), nil
		case ">=":
			return truth(x >= y), nil
		case "+":
			return x + y, nil
		case "-":
			return x - y, nil
		case "*":
			return x * y, nil
		case "/":
			return x / y, nil
		case "%":
			return math.Mod(math.Trunc(x), math.Trunc(y)), nil
		}
		return 0, fmt.Errorf("unknown operator %q", n.Op)
	case *Call:
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			v, err := eval(a, rec)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return builtins[n.Func].fn(args), nil
	}
	return 0, fmt.Errorf("unknown node %T", n)
}

// Program is a compiled expression. A Program whose source failed to parse
// still exists; every evaluation then reports the syntax error.
type Program struct {
	src  string
	root Node
	err  error
}

// Compile parses src. The returned Program is never nil.
func Compile(src string) (*Program, error) {
	root, err := Parse(src)
	return &Program{src: src, root: root, err: err}, err
}

// MustCompile is like Compile but panics on syntax errors.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) Source() string { return p.src }

// Err returns the syntax error of the source, if any.
func (p *Program) Err() error { return p.err }

// Float evaluates the program against rec.
func (p *Program) Float(rec Record) (float64, error) {
	if p.err != nil {
		return 0, &EvaluationError{Expr: p.src, Err: p.err}
	}
	v, err := eval(p.root, rec)
	if err != nil {
		var ee *EvaluationError
		if errors.As(err, &ee) {
			ee.Expr = p.src
			return 0, ee
		}
		return 0, &EvaluationError{Expr: p.src, Err: err}
	}
	return v, nil
}

// Bool evaluates the program against rec; non-zero is true.
func (p *Program) Bool(rec Record) (bool, error) {
	v, err := p.Float(rec)
	return v != 0, err
}

// Fields returns the sorted names of the fields referenced by the program.
func (p *Program) Fields() []string {
	if p.root == nil {
		return nil
	}
	seen := make(map[string]bool)
	Walk(p.root, func(n Node) {
		if id, ok := n.(*Ident); ok {
			seen[id.Name] = true
		}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
