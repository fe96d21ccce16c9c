package builtins

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
)

// sedOp is one parsed sed command.
type sedOp struct {
	addrLo   int // 1-based, 0 = unset, -1 = $
	addrHi   int
	addrRe   *regexp.Regexp
	op       byte // s, d, p
	re       *regexp.Regexp
	repl     string
	global   bool
	printSub bool
}

func sedCmd(env *interp.Env, args []string) int {
	quiet := false
	inPlace := false
	var scripts []string
	var files []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-n":
			quiet = true
		case arg == "-i":
			inPlace = true
		case arg == "-e":
			if i+1 >= len(args) {
				return core.UsageError(env.Stdio, "sed", "option requires an argument -- 'e'")
			}
			i++
			scripts = append(scripts, args[i])
		case len(arg) > 1 && arg[0] == '-':
			return core.UsageError(env.Stdio, "sed", "invalid option -- '"+arg+"'")
		default:
			if len(scripts) == 0 {
				scripts = append(scripts, arg)
			} else {
				files = append(files, arg)
			}
		}
	}
	if len(scripts) == 0 {
		return core.UsageError(env.Stdio, "sed", "missing script")
	}
	var ops []*sedOp
	for _, script := range scripts {
		for _, piece := range splitSedScript(script) {
			op, err := parseSedOp(piece)
			if err != nil {
				env.Stdio.Errorf("sed: %v\n", err)
				return core.ExitUsage
			}
			ops = append(ops, op)
		}
	}
	if inPlace && len(files) == 0 {
		return core.UsageError(env.Stdio, "sed", "-i requires an input file")
	}

	run := func(input string) string {
		var out strings.Builder
		lines := splitLines(input)
		for num, line := range lines {
			deleted := false
			printed := false
			for _, op := range ops {
				if !op.matches(num+1, len(lines), line) {
					continue
				}
				switch op.op {
				case 'd':
					deleted = true
				case 'p':
					printed = true
				case 's':
					line = op.substitute(line)
					if op.printSub {
						printed = true
					}
				}
				if deleted {
					break
				}
			}
			if deleted {
				continue
			}
			if !quiet {
				out.WriteString(line)
				out.WriteByte('\n')
			}
			if printed {
				out.WriteString(line)
				out.WriteByte('\n')
			}
		}
		return out.String()
	}

	if inPlace {
		status := 0
		for _, f := range files {
			p := env.Path(f)
			data, err := env.FS.ReadFile(p)
			if err != nil {
				env.Stdio.Errorf("sed: %s: No such file or directory\n", f)
				status = core.ExitFailure
				continue
			}
			if err := env.FS.WriteFile(p, []byte(run(string(data)))); err != nil {
				env.Stdio.Errorf("sed: %s: %v\n", f, err)
				status = core.ExitFailure
			}
		}
		return status
	}
	input, status := readInput(env, "sed", files)
	env.Stdio.Print(run(input))
	return status
}

// splitSedScript splits on top-level semicolons, leaving the bodies of
// s/// expressions intact.
func splitSedScript(s string) []string {
	var out []string
	depth := 0
	var delim byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			i++
			continue
		}
		if delim != 0 {
			if c == delim {
				depth--
				if depth == 0 {
					delim = 0
				}
			}
			continue
		}
		if c == 's' && i+1 < len(s) && depth == 0 && (i == start || s[i-1] == ';') {
			delim = s[i+1]
			depth = 2 // two more delimiters close the expression
			i++
			continue
		}
		if c == ';' {
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, strings.TrimSpace(s[start:]))
	}
	return out
}

func parseSedOp(s string) (*sedOp, error) {
	op := &sedOp{}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errSed("empty command")
	}

	// Optional address: N, N,M, $, or /re/.
	if s[0] == '/' {
		end := strings.IndexByte(s[1:], '/')
		if end < 0 {
			return nil, errSed("unterminated address")
		}
		re, err := regexp.Compile(s[1 : 1+end])
		if err != nil {
			return nil, errSed("invalid address pattern")
		}
		op.addrRe = re
		s = s[end+2:]
	} else if s[0] == '$' {
		op.addrLo = -1
		s = s[1:]
	} else if s[0] >= '0' && s[0] <= '9' {
		j := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		op.addrLo, _ = strconv.Atoi(s[:j])
		s = s[j:]
		if len(s) > 0 && s[0] == ',' {
			s = s[1:]
			if len(s) > 0 && s[0] == '$' {
				op.addrHi = -1
				s = s[1:]
			} else {
				j = 0
				for j < len(s) && s[j] >= '0' && s[j] <= '9' {
					j++
				}
				if j == 0 {
					return nil, errSed("invalid address range")
				}
				op.addrHi, _ = strconv.Atoi(s[:j])
				s = s[j:]
			}
		}
	}

	if s == "" {
		return nil, errSed("missing command")
	}
	switch s[0] {
	case 'd':
		op.op = 'd'
		return op, nil
	case 'p':
		op.op = 'p'
		return op, nil
	case 's':
		if len(s) < 2 {
			return nil, errSed("unterminated 's' command")
		}
		delim := s[1]
		parts := splitUnescaped(s[2:], delim)
		if len(parts) < 3 {
			return nil, errSed("unterminated 's' command")
		}
		pat := parts[0]
		flags := parts[2]
		icase := false
		for _, c := range flags {
			switch c {
			case 'g':
				op.global = true
			case 'p':
				op.printSub = true
			case 'i', 'I':
				icase = true
			default:
				return nil, errSed("unknown flag to 's' command")
			}
		}
		if icase {
			pat = "(?i)" + pat
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, errSed("invalid pattern in 's' command")
		}
		op.op = 's'
		op.re = re
		op.repl = parts[1]
		return op, nil
	}
	return nil, errSed("unknown command: '" + string(s[0]) + "'")
}

type errSed string

func (e errSed) Error() string { return string(e) }

// splitUnescaped splits s on delim into exactly three parts (pattern,
// replacement, flags), honoring backslash escapes of the delimiter.
func splitUnescaped(s string, delim byte) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == delim {
			cur.WriteByte(delim)
			i++
			continue
		}
		if c == '\\' && i+1 < len(s) {
			cur.WriteByte(c)
			cur.WriteByte(s[i+1])
			i++
			continue
		}
		if c == delim {
			parts = append(parts, cur.String())
			cur.Reset()
			if len(parts) == 2 {
				parts = append(parts, s[i+1:])
				return parts
			}
			continue
		}
		cur.WriteByte(c)
	}
	if len(parts) == 2 {
		parts = append(parts, cur.String())
	}
	return parts
}

func (op *sedOp) matches(line, total int, text string) bool {
	if op.addrRe != nil {
		return op.addrRe.MatchString(text)
	}
	if op.addrLo == 0 {
		return true
	}
	lo := op.addrLo
	if lo == -1 {
		lo = total
	}
	if op.addrHi == 0 {
		return line == lo
	}
	hi := op.addrHi
	if hi == -1 {
		hi = total
	}
	return line >= lo && line <= hi
}

func (op *sedOp) substitute(line string) string {
	tmpl := sedReplTemplate(op.repl)
	if op.global {
		return op.re.ReplaceAllString(line, tmpl)
	}
	loc := op.re.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}
	var b []byte
	b = append(b, line[:loc[0]]...)
	b = op.re.ExpandString(b, tmpl, line, loc)
	b = append(b, line[loc[1]:]...)
	return string(b)
}

// sedReplTemplate converts sed replacement syntax (& and \N) to the
// regexp package's ${N} form.
func sedReplTemplate(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		switch {
		case c == '\\' && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9':
			b.WriteString("${" + string(repl[i+1]) + "}")
			i++
		case c == '\\' && i+1 < len(repl):
			i++
			switch repl[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(repl[i])
			}
		case c == '&':
			b.WriteString("${0}")
		case c == '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
