package interp

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shellbox/shellbox/pkg/parser"
)

// expandError is an expansion failure. Normally it fails the current
// command with status 1; a fatal one, raised by ${x:?msg}, aborts the
// whole script the way a non-interactive shell does.
type expandError struct {
	msg   string
	fatal bool
}

func (e *expandError) Error() string { return e.msg }

type frag struct {
	s      string
	quoted bool
}

// fieldAcc accumulates fragments into fields during expansion.
// started distinguishes an empty in-progress field (from "") from no
// field at all.
type fieldAcc struct {
	fields  [][]frag
	cur     []frag
	started bool
}

func (f *fieldAcc) add(s string, quoted bool) {
	f.cur = append(f.cur, frag{s: s, quoted: quoted})
	f.started = true
}

func (f *fieldAcc) finish() {
	if f.started {
		f.fields = append(f.fields, f.cur)
		f.cur = nil
		f.started = false
	}
}

// expandWord expands one word into zero or more fields, applying
// parameter expansion, command and arithmetic substitution, field
// splitting, tilde expansion, and globbing.
func (in *Interp) expandWord(io execIO, w *parser.Word) ([]string, error) {
	var acc fieldAcc
	if err := in.expandInto(&acc, io, w); err != nil {
		return nil, err
	}
	acc.finish()

	var out []string
	for _, field := range acc.fields {
		out = append(out, in.finishField(field)...)
	}
	return out, nil
}

// expandWordNoSplit expands a word into exactly one string: no field
// splitting and no globbing. Used for assignment values, redirect
// targets, and case subjects.
func (in *Interp) expandWordNoSplit(io execIO, w *parser.Word) (string, error) {
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case parser.LitPart:
			b.WriteString(p.Text)
		case parser.ParamPart:
			vals, _, err := in.paramValues(io, p)
			if err != nil {
				return "", err
			}
			b.WriteString(strings.Join(vals, " "))
		case parser.CmdSubPart:
			s, err := in.commandSubst(io, p.Script)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case parser.ArithPart:
			n, err := in.arithSubst(io, p.Expr)
			if err != nil {
				return "", err
			}
			b.WriteString(n)
		}
	}
	return b.String(), nil
}

// expandString expands raw source text as a word body. Used for
// ${name:-word} operands.
func (in *Interp) expandString(io execIO, s string) (string, error) {
	w, err := parser.ParseWordParts(s)
	if err != nil {
		return "", err
	}
	return in.expandWordNoSplit(io, w)
}

// expandHeredoc expands a here-document body, honoring only $ forms
// and backquotes.
func (in *Interp) expandHeredoc(io execIO, body string) (string, error) {
	w, err := parser.ParseExpansionText(body)
	if err != nil {
		return "", err
	}
	return in.expandWordNoSplit(io, w)
}

func (in *Interp) expandInto(acc *fieldAcc, io execIO, w *parser.Word) error {
	for _, part := range w.Parts {
		switch p := part.(type) {
		case parser.LitPart:
			acc.add(p.Text, p.Quoted)
		case parser.ParamPart:
			vals, multi, err := in.paramValues(io, p)
			if err != nil {
				return err
			}
			if p.Quoted {
				if multi {
					// "$@" style: one field per element.
					for i, v := range vals {
						if i > 0 {
							acc.finish()
						}
						acc.add(v, true)
					}
				} else if len(vals) > 0 {
					acc.add(strings.Join(vals, " "), true)
				} else if p.Name != "@" && p.Index != "@" {
					acc.add("", true)
				}
			} else {
				splitInto(acc, strings.Join(vals, " "))
			}
		case parser.CmdSubPart:
			s, err := in.commandSubst(io, p.Script)
			if err != nil {
				return err
			}
			if p.Quoted {
				acc.add(s, true)
			} else {
				splitInto(acc, s)
			}
		case parser.ArithPart:
			s, err := in.arithSubst(io, p.Expr)
			if err != nil {
				return err
			}
			acc.add(s, p.Quoted)
		}
	}
	return nil
}

// splitInto field-splits an unquoted expansion result on whitespace.
func splitInto(acc *fieldAcc, s string) {
	if s == "" {
		return
	}
	leading := strings.IndexAny(s, " \t\n") == 0
	trailing := strings.LastIndexAny(s, " \t\n") == len(s)-1
	pieces := strings.Fields(s)
	for i, piece := range pieces {
		if i > 0 || leading {
			acc.finish()
		}
		acc.add(piece, false)
	}
	if trailing && len(pieces) > 0 {
		acc.finish()
	}
}

// finishField joins a field's fragments, applies tilde expansion, and
// globs when an unquoted fragment carries pattern characters. A
// pattern with no matches passes through verbatim.
func (in *Interp) finishField(field []frag) []string {
	glob := false
	var b strings.Builder
	for i, f := range field {
		s := f.s
		if i == 0 && !f.quoted && strings.HasPrefix(s, "~") {
			if s == "~" {
				s = in.home()
			} else if s[1] == '/' {
				s = in.home() + s[1:]
			}
		}
		if !f.quoted && strings.ContainsAny(s, "*?[") {
			glob = true
		}
		b.WriteString(s)
	}
	text := b.String()
	if glob {
		if matches := in.fs.Glob(in.cwd, text); len(matches) > 0 {
			return matches
		}
	}
	return []string{text}
}

func (in *Interp) home() string {
	if h := in.scope.get("HOME").str(); h != "" {
		return h
	}
	return "/home/user"
}

// paramValues resolves a parameter expansion. multi reports an @-style
// expansion that keeps one field per element when quoted.
func (in *Interp) paramValues(io execIO, p parser.ParamPart) ([]string, bool, error) {
	name := p.Name
	var vals []string
	multi := false

	switch {
	case name == "?":
		vals = []string{strconv.Itoa(in.lastStatus)}
	case name == "#":
		vals = []string{strconv.Itoa(len(in.params))}
	case name == "@":
		vals, multi = in.params, true
	case name == "*":
		vals = in.params
	case name == "$":
		vals = []string{strconv.Itoa(shellPID)}
	case name == "0":
		vals = []string{in.shellName}
	case name == "!" || name == "-":
		vals = nil
	case name[0] >= '0' && name[0] <= '9':
		n, err := strconv.Atoi(name)
		if err == nil && n >= 1 && n <= len(in.params) {
			vals = []string{in.params[n-1]}
		}
	default:
		v := in.scope.get(name)
		switch p.Index {
		case "":
			if v != nil {
				vals = []string{v.str()}
			}
		case "@":
			vals, multi = v.elems(), true
		case "*":
			vals = v.elems()
		default:
			idxStr, err := in.expandString(io, p.Index)
			if err != nil {
				return nil, false, err
			}
			idx64, aerr := in.evalArith(idxStr)
			if aerr != nil {
				return nil, false, &expandError{msg: fmt.Sprintf("%s: bad array subscript", name)}
			}
			elems := v.elems()
			if idx64 >= 0 && int(idx64) < len(elems) {
				vals = []string{elems[int(idx64)]}
			}
		}
	}

	if p.Length {
		if p.Index == "@" || p.Index == "*" || name == "@" || name == "*" {
			return []string{strconv.Itoa(len(vals))}, false, nil
		}
		var s string
		if len(vals) > 0 {
			s = vals[0]
		}
		return []string{strconv.Itoa(utf8.RuneCountInString(s))}, false, nil
	}

	if p.Op == parser.OpNone {
		return vals, multi, nil
	}

	val := strings.Join(vals, " ")
	// Colon forms substitute when unset or empty, colon-less forms only
	// when unset.
	missing := val == ""
	if p.UnsetOnly {
		missing = vals == nil
	}
	switch p.Op {
	case parser.OpDefault:
		if missing {
			s, err := in.expandString(io, p.Arg)
			return []string{s}, false, err
		}
	case parser.OpAssign:
		if missing {
			s, err := in.expandString(io, p.Arg)
			if err != nil {
				return nil, false, err
			}
			in.scope.set(name, s)
			return []string{s}, false, nil
		}
	case parser.OpError:
		if missing {
			msg := p.Arg
			if msg == "" {
				msg = "parameter null or not set"
			} else if s, err := in.expandString(io, msg); err == nil {
				msg = s
			}
			return nil, false, &expandError{msg: name + ": " + msg, fatal: true}
		}
	case parser.OpAlternate:
		if !missing {
			s, err := in.expandString(io, p.Arg)
			return []string{s}, false, err
		}
		return nil, false, nil
	case parser.OpPrefixShort, parser.OpPrefixLong, parser.OpSuffixShort, parser.OpSuffixLong:
		pat, err := in.expandString(io, p.Arg)
		if err != nil {
			return nil, false, err
		}
		return []string{trimPattern(val, pat, p.Op)}, false, nil
	}
	return []string{val}, false, nil
}

// trimPattern implements ${x#pat}, ${x##pat}, ${x%pat}, ${x%%pat}.
func trimPattern(val, pat string, op parser.ParamOp) string {
	switch op {
	case parser.OpPrefixShort:
		for i := 0; i <= len(val); i++ {
			if matchGlob(pat, val[:i]) {
				return val[i:]
			}
		}
	case parser.OpPrefixLong:
		for i := len(val); i >= 0; i-- {
			if matchGlob(pat, val[:i]) {
				return val[i:]
			}
		}
	case parser.OpSuffixShort:
		for i := len(val); i >= 0; i-- {
			if matchGlob(pat, val[i:]) {
				return val[:i]
			}
		}
	case parser.OpSuffixLong:
		for i := 0; i <= len(val); i++ {
			if matchGlob(pat, val[i:]) {
				return val[:i]
			}
		}
	}
	return val
}

// arithSubst evaluates $((...)) to its decimal string.
func (in *Interp) arithSubst(io execIO, expr string) (string, error) {
	// The expression may itself contain $ references.
	src, err := in.expandHeredoc(io, expr)
	if err != nil {
		return "", err
	}
	n, err := in.evalArith(src)
	if err != nil {
		return "", &expandError{msg: err.Error()}
	}
	return strconv.FormatInt(n, 10), nil
}
