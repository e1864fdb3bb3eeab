package expr

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

var constants = map[string]float64{
	"pi":    math.Pi,
	"true":  1,
	"false": 0,
}

func isIdentStart(r byte) bool {
	return r == '_' || r == '$' || unicode.IsLetter(rune(r))
}

func isIdentPart(r byte) bool {
	return isIdentStart(r) || r == '.' || unicode.IsDigit(rune(r))
}

func isDigit(r byte) bool { return r >= '0' && r <= '9' }

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					i = j
					for i < len(src) && isDigit(src[i]) {
						i++
					}
				}
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		default:
			if i+1 < len(src) {
				two := src[i : i+2]
				switch two {
				case "&&", "||", "==", "!=", "<=", ">=":
					toks = append(toks, token{tokOp, two, i})
					i += 2
					continue
				}
			}
			switch c {
			case '<', '>', '+', '-', '*', '/', '%', '!':
				toks = append(toks, token{tokOp, string(c), i})
				i++
			default:
				return nil, &SyntaxError{Expr: src, Pos: i, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
			}
		}
	}
	return append(toks, token{tokEOF, "", len(src)}), nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

// Parse parses src into an expression tree.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{Expr: src, Msg: "empty expression"}
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	n, err := p.expr(1)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected "+strconv.Quote(t.text))
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, msg string) error {
	return &SyntaxError{Expr: p.src, Pos: t.pos, Msg: msg}
}

func (p *parser) expr(minPrec int) (Node, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return lhs, nil
		}
		prec, ok := binaryPrec[t.text]
		if !ok || prec < minPrec {
			return lhs, nil
		}
		p.next()
		rhs, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = &Binary{Op: t.text, X: lhs, Y: rhs}
	}
}

func (p *parser) unary() (Node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "!" || t.text == "-" || t.text == "+") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.text, X: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number "+strconv.Quote(t.text))
		}
		return &Number{Value: v, Text: t.text}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		if v, ok := constants[t.text]; ok {
			return &Number{Value: v, Text: t.text}, nil
		}
		return &Ident{Name: t.text}, nil
	case tokLParen:
		n, err := p.expr(1)
		if err != nil {
			return nil, err
		}
		if r := p.next(); r.kind != tokRParen {
			return nil, p.errorf(r, "missing closing parenthesis")
		}
		return n, nil
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	}
	return nil, p.errorf(t, "unexpected "+strconv.Quote(t.text))
}

func (p *parser) call(name token) (Node, error) {
	fn, ok := builtins[name.text]
	if !ok {
		return nil, p.errorf(name, "unknown function "+strconv.Quote(name.text))
	}
	p.next() // (
	var args []Node
	if p.peek().kind != tokRParen {
		for {
			a, err := p.expr(1)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if r := p.next(); r.kind != tokRParen {
		return nil, p.errorf(r, "missing closing parenthesis in call to "+name.text)
	}
	if len(args) != fn.arity {
		return nil, p.errorf(name, name.text+" takes "+strconv.Itoa(fn.arity)+" argument(s), got "+strconv.Itoa(len(args)))
	}
	return &Call{Func: name.text, Args: args}, nil
}
