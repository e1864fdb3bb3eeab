package expr

import "strings"

// Paren returns s wrapped in parentheses unless it is already a single
// operand: a name, a number, a call or an expression enclosed in one pair
// of parentheses.
func Paren(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || IsOperand(s) {
		return s
	}
	return "(" + s + ")"
}

// IsOperand reports whether s needs no parentheses to be used as an operand.
func IsOperand(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	if i == len(s) {
		return true
	}
	if s[i] != '(' {
		return false
	}
	if i > 0 && !isIdentStart(s[0]) {
		return false
	}
	return closing(s, i) == len(s)-1
}

// closing returns the index of the parenthesis closing the one at open.
func closing(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Product joins weight factors with '*'. Empty factors and "1" are
// dropped; the product of nothing is "1".
func Product(factors ...string) string {
	var parts []string
	for _, f := range factors {
		f = strings.TrimSpace(f)
		if f == "" || f == "1" {
			continue
		}
		parts = append(parts, Paren(f))
	}
	if len(parts) == 0 {
		return "1"
	}
	return strings.Join(parts, " * ")
}

// Enclosed reports whether s is wrapped in a single pair of parentheses.
func Enclosed(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) > 1 && s[0] == '(' && closing(s, 0) == len(s)-1
}
