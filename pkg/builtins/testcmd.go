package builtins

import (
	"strconv"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
)

func bracketCmd(env *interp.Env, args []string) int {
	if len(args) == 0 || args[len(args)-1] != "]" {
		env.Stdio.Errorf("[: missing ']'\n")
		return core.ExitUsage
	}
	return testCmd(env, args[:len(args)-1])
}

// testCmd evaluates conditional expressions: file checks against the
// VFS, string and integer comparisons, with ! negation and -a/-o
// connectives.
func testCmd(env *interp.Env, args []string) int {
	t := &testEval{env: env, args: args}
	result, err := t.orExpr()
	if err != nil {
		env.Stdio.Errorf("test: %s\n", err.Error())
		return core.ExitUsage
	}
	if t.pos != len(t.args) {
		env.Stdio.Errorf("test: too many arguments\n")
		return core.ExitUsage
	}
	if result {
		return core.ExitSuccess
	}
	return core.ExitFailure
}

type testEval struct {
	env  *interp.Env
	args []string
	pos  int
}

type testErr string

func (e testErr) Error() string { return string(e) }

func (t *testEval) peek() (string, bool) {
	if t.pos < len(t.args) {
		return t.args[t.pos], true
	}
	return "", false
}

func (t *testEval) next() (string, bool) {
	s, ok := t.peek()
	if ok {
		t.pos++
	}
	return s, ok
}

func (t *testEval) orExpr() (bool, error) {
	left, err := t.andExpr()
	if err != nil {
		return false, err
	}
	for {
		if op, ok := t.peek(); !ok || op != "-o" {
			return left, nil
		}
		t.pos++
		right, err := t.andExpr()
		if err != nil {
			return false, err
		}
		left = left || right
	}
}

func (t *testEval) andExpr() (bool, error) {
	left, err := t.primary()
	if err != nil {
		return false, err
	}
	for {
		if op, ok := t.peek(); !ok || op != "-a" {
			return left, nil
		}
		t.pos++
		right, err := t.primary()
		if err != nil {
			return false, err
		}
		left = left && right
	}
}

func (t *testEval) primary() (bool, error) {
	arg, ok := t.next()
	if !ok {
		return false, nil
	}
	if arg == "!" {
		v, err := t.primary()
		return !v, err
	}
	if arg == "(" {
		v, err := t.orExpr()
		if err != nil {
			return false, err
		}
		if tok, ok := t.next(); !ok || tok != ")" {
			return false, testErr("missing ')'")
		}
		return v, nil
	}

	// Unary operators.
	if len(arg) == 2 && arg[0] == '-' {
		operand, haveOperand := t.peek()
		switch arg {
		case "-e", "-f", "-d", "-s", "-r", "-w", "-x":
			if !haveOperand {
				return false, testErr("missing argument after '" + arg + "'")
			}
			t.pos++
			return t.fileTest(arg, operand), nil
		case "-z", "-n":
			if !haveOperand {
				return false, testErr("missing argument after '" + arg + "'")
			}
			t.pos++
			if arg == "-z" {
				return operand == "", nil
			}
			return operand != "", nil
		}
	}

	// Binary operators.
	if op, ok := t.peek(); ok {
		switch op {
		case "=", "==", "!=":
			t.pos++
			right, ok := t.next()
			if !ok {
				return false, testErr("missing argument after '" + op + "'")
			}
			if op == "!=" {
				return arg != right, nil
			}
			return arg == right, nil
		case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
			t.pos++
			right, ok := t.next()
			if !ok {
				return false, testErr("missing argument after '" + op + "'")
			}
			a, err1 := strconv.ParseInt(arg, 10, 64)
			b, err2 := strconv.ParseInt(right, 10, 64)
			if err1 != nil || err2 != nil {
				return false, testErr("integer expression expected")
			}
			switch op {
			case "-eq":
				return a == b, nil
			case "-ne":
				return a != b, nil
			case "-lt":
				return a < b, nil
			case "-le":
				return a <= b, nil
			case "-gt":
				return a > b, nil
			default:
				return a >= b, nil
			}
		}
	}

	// A lone operand is true when non-empty.
	return arg != "", nil
}

func (t *testEval) fileTest(op, operand string) bool {
	p := t.env.Path(operand)
	meta, err := t.env.FS.Stat(p)
	if err != nil {
		return false
	}
	switch op {
	case "-e", "-r", "-w", "-x":
		return true
	case "-f":
		return !meta.IsDir()
	case "-d":
		return meta.IsDir()
	case "-s":
		return !meta.IsDir() && meta.Size > 0
	}
	return false
}
