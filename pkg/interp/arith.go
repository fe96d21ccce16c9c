package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// arithEval evaluates a $((...)) expression. Variables resolve through
// the interpreter's scope; unset names evaluate to zero.
type arithEval struct {
	in   *Interp
	src  string
	pos  int
}

func (in *Interp) evalArith(expr string) (int64, error) {
	a := &arithEval{in: in, src: expr}
	n, err := a.ternary()
	if err != nil {
		return 0, err
	}
	a.skipSpace()
	if a.pos < len(a.src) {
		return 0, fmt.Errorf("arithmetic syntax error near %q", a.src[a.pos:])
	}
	return n, nil
}

func (a *arithEval) skipSpace() {
	for a.pos < len(a.src) && (a.src[a.pos] == ' ' || a.src[a.pos] == '\t' || a.src[a.pos] == '\n') {
		a.pos++
	}
}

func (a *arithEval) peekOp(ops ...string) string {
	a.skipSpace()
	for _, op := range ops {
		if strings.HasPrefix(a.src[a.pos:], op) {
			return op
		}
	}
	return ""
}

func (a *arithEval) ternary() (int64, error) {
	cond, err := a.logicalOr()
	if err != nil {
		return 0, err
	}
	if a.peekOp("?") == "" {
		return cond, nil
	}
	a.pos++
	yes, err := a.ternary()
	if err != nil {
		return 0, err
	}
	if a.peekOp(":") == "" {
		return 0, fmt.Errorf("expected ':' in conditional expression")
	}
	a.pos++
	no, err := a.ternary()
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return yes, nil
	}
	return no, nil
}

func (a *arithEval) logicalOr() (int64, error) {
	left, err := a.logicalAnd()
	if err != nil {
		return 0, err
	}
	for a.peekOp("||") != "" {
		a.pos += 2
		right, err := a.logicalAnd()
		if err != nil {
			return 0, err
		}
		left = boolToInt(left != 0 || right != 0)
	}
	return left, nil
}

func (a *arithEval) logicalAnd() (int64, error) {
	left, err := a.comparison()
	if err != nil {
		return 0, err
	}
	for a.peekOp("&&") != "" {
		a.pos += 2
		right, err := a.comparison()
		if err != nil {
			return 0, err
		}
		left = boolToInt(left != 0 && right != 0)
	}
	return left, nil
}

func (a *arithEval) comparison() (int64, error) {
	left, err := a.additive()
	if err != nil {
		return 0, err
	}
	for {
		op := a.peekOp("<=", ">=", "==", "!=", "<", ">")
		if op == "" {
			return left, nil
		}
		a.pos += len(op)
		right, err := a.additive()
		if err != nil {
			return 0, err
		}
		switch op {
		case "<":
			left = boolToInt(left < right)
		case "<=":
			left = boolToInt(left <= right)
		case ">":
			left = boolToInt(left > right)
		case ">=":
			left = boolToInt(left >= right)
		case "==":
			left = boolToInt(left == right)
		case "!=":
			left = boolToInt(left != right)
		}
	}
}

func (a *arithEval) additive() (int64, error) {
	left, err := a.multiplicative()
	if err != nil {
		return 0, err
	}
	for {
		a.skipSpace()
		if a.pos >= len(a.src) {
			return left, nil
		}
		c := a.src[a.pos]
		if c != '+' && c != '-' {
			return left, nil
		}
		// Leave ++ and -- for the unary layer.
		if a.pos+1 < len(a.src) && a.src[a.pos+1] == c {
			return left, nil
		}
		a.pos++
		right, err := a.multiplicative()
		if err != nil {
			return 0, err
		}
		if c == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (a *arithEval) multiplicative() (int64, error) {
	left, err := a.unary()
	if err != nil {
		return 0, err
	}
	for {
		a.skipSpace()
		if a.pos >= len(a.src) {
			return left, nil
		}
		c := a.src[a.pos]
		if c != '*' && c != '/' && c != '%' {
			return left, nil
		}
		if c == '*' && a.pos+1 < len(a.src) && a.src[a.pos+1] == '*' {
			a.pos += 2
			right, err := a.unary()
			if err != nil {
				return 0, err
			}
			left = ipow(left, right)
			continue
		}
		a.pos++
		right, err := a.unary()
		if err != nil {
			return 0, err
		}
		switch c {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left %= right
		}
	}
}

func (a *arithEval) unary() (int64, error) {
	a.skipSpace()
	if a.pos >= len(a.src) {
		return 0, fmt.Errorf("unexpected end of arithmetic expression")
	}
	switch a.src[a.pos] {
	case '-':
		a.pos++
		n, err := a.unary()
		return -n, err
	case '+':
		a.pos++
		return a.unary()
	case '!':
		a.pos++
		n, err := a.unary()
		return boolToInt(n == 0), err
	case '(':
		a.pos++
		n, err := a.ternary()
		if err != nil {
			return 0, err
		}
		if a.peekOp(")") == "" {
			return 0, fmt.Errorf("missing ')' in arithmetic expression")
		}
		a.pos++
		return n, nil
	}
	return a.primary()
}

func (a *arithEval) primary() (int64, error) {
	a.skipSpace()
	start := a.pos
	c := a.src[a.pos]
	if c >= '0' && c <= '9' {
		for a.pos < len(a.src) && a.src[a.pos] >= '0' && a.src[a.pos] <= '9' {
			a.pos++
		}
		return strconv.ParseInt(a.src[start:a.pos], 10, 64)
	}
	if c == '$' {
		a.pos++
		a.skipSpace()
		if a.pos >= len(a.src) {
			return 0, fmt.Errorf("unexpected end of arithmetic expression")
		}
		start = a.pos
		c = a.src[a.pos]
	}
	if !isVarStart(c) {
		return 0, fmt.Errorf("arithmetic syntax error near %q", a.src[a.pos:])
	}
	for a.pos < len(a.src) && isVarChar(a.src[a.pos]) {
		a.pos++
	}
	name := a.src[start:a.pos]

	// x=expr, x+=expr, x++ and friends.
	if op := a.peekOp("++", "--"); op != "" {
		a.pos += 2
		cur := a.varValue(name)
		if op == "++" {
			a.in.scope.set(name, strconv.FormatInt(cur+1, 10))
		} else {
			a.in.scope.set(name, strconv.FormatInt(cur-1, 10))
		}
		return cur, nil
	}
	if op := a.peekOp("+=", "-=", "*=", "/=", "%=", "="); op != "" {
		if op == "=" && a.pos+1 < len(a.src) && a.src[a.pos+1] == '=' {
			// Comparison, not assignment.
			return a.varValue(name), nil
		}
		a.pos += len(op)
		rhs, err := a.ternary()
		if err != nil {
			return 0, err
		}
		cur := a.varValue(name)
		var next int64
		switch op {
		case "=":
			next = rhs
		case "+=":
			next = cur + rhs
		case "-=":
			next = cur - rhs
		case "*=":
			next = cur * rhs
		case "/=":
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			next = cur / rhs
		case "%=":
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			next = cur % rhs
		}
		a.in.scope.set(name, strconv.FormatInt(next, 10))
		return next, nil
	}
	return a.varValue(name), nil
}

func (a *arithEval) varValue(name string) int64 {
	s := strings.TrimSpace(a.in.scope.get(name).str())
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func isVarStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isVarChar(c byte) bool {
	return isVarStart(c) || (c >= '0' && c <= '9')
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func ipow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var r int64 = 1
	for i := int64(0); i < exp; i++ {
		r *= base
	}
	return r
}
