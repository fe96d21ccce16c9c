package builtins

import (
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
)

func echoCmd(env *interp.Env, args []string) int {
	newline := true
	escapes := false
	i := 0
	for ; i < len(args); i++ {
		switch args[i] {
		case "-n":
			newline = false
		case "-e":
			escapes = true
		case "-E":
			escapes = false
		case "-ne", "-en":
			newline = false
			escapes = true
		default:
			goto done
		}
	}
done:
	out := strings.Join(args[i:], " ")
	if escapes {
		out = expandEscapes(out)
	}
	if newline {
		out += "\n"
	}
	env.Stdio.Print(out)
	return core.ExitSuccess
}

func expandEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'a':
			b.WriteByte(7)
		case 'b':
			b.WriteByte(8)
		case 'f':
			b.WriteByte(12)
		case 'v':
			b.WriteByte(11)
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func printfCmd(env *interp.Env, args []string) int {
	if len(args) == 0 {
		return core.UsageError(env.Stdio, "printf", "missing format string")
	}
	format := args[0]
	rest := args[1:]
	for {
		consumed := formatOnce(env.Stdio.Out, format, rest)
		if consumed >= len(rest) || consumed == 0 {
			break
		}
		rest = rest[consumed:]
	}
	return core.ExitSuccess
}

// formatOnce renders format once, consuming arguments for each verb.
// Returns how many arguments it used.
func formatOnce(w io.Writer, format string, args []string) int {
	used := 0
	next := func() string {
		if used < len(args) {
			s := args[used]
			used++
			return s
		}
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			i++
			b.WriteString(expandEscapes("\\" + string(format[i])))
			continue
		}
		if c != '%' || i+1 >= len(format) {
			b.WriteByte(c)
			continue
		}
		// Width and precision pass through to the fmt verb.
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ 0123456789.", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			b.WriteByte(c)
			continue
		}
		spec := format[i : j+1]
		verb := format[j]
		i = j
		switch verb {
		case '%':
			b.WriteByte('%')
		case 's':
			fmt.Fprintf(&b, spec, next())
		case 'c':
			s := next()
			if s == "" {
				b.WriteString("")
			} else {
				b.WriteString(s[:1])
			}
		case 'd', 'i', 'x', 'X', 'o':
			n, _ := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
			if verb == 'i' {
				spec = spec[:len(spec)-1] + "d"
			}
			fmt.Fprintf(&b, spec, n)
		case 'f', 'e', 'g':
			f, _ := strconv.ParseFloat(strings.TrimSpace(next()), 64)
			fmt.Fprintf(&b, spec, f)
		default:
			b.WriteString(spec)
		}
	}
	fmt.Fprint(w, b.String())
	return used
}

func catCmd(env *interp.Env, args []string) int {
	number := false
	flags, files := splitFlags(args)
	for _, f := range flags {
		switch f {
		case "-n":
			number = true
		default:
			return core.UsageError(env.Stdio, "cat", "invalid option -- '"+f+"'")
		}
	}
	input, status := readInput(env, "cat", files)
	if !number {
		env.Stdio.Print(input)
		return status
	}
	for i, line := range splitLines(input) {
		env.Stdio.Printf("%6d\t%s\n", i+1, line)
	}
	return status
}

func headCmd(env *interp.Env, args []string) int {
	return headTail(env, "head", args, true)
}

func tailCmd(env *interp.Env, args []string) int {
	return headTail(env, "tail", args, false)
}

func headTail(env *interp.Env, name string, args []string, head bool) int {
	n := 10
	bytes := -1
	var files []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-n" || arg == "-c":
			if i+1 >= len(args) {
				return core.UsageError(env.Stdio, name, "option requires an argument -- '"+arg[1:]+"'")
			}
			i++
			v, err := strconv.Atoi(args[i])
			if err != nil || v < 0 {
				return core.UsageError(env.Stdio, name, "invalid number of lines: '"+args[i]+"'")
			}
			if arg == "-n" {
				n = v
			} else {
				bytes = v
			}
		case strings.HasPrefix(arg, "-n"):
			v, err := strconv.Atoi(arg[2:])
			if err != nil || v < 0 {
				return core.UsageError(env.Stdio, name, "invalid number of lines: '"+arg[2:]+"'")
			}
			n = v
		case len(arg) > 1 && arg[0] == '-' && arg != "-":
			return core.UsageError(env.Stdio, name, "invalid option -- '"+arg+"'")
		default:
			files = append(files, arg)
		}
	}
	input, status := readInput(env, name, files)
	if bytes >= 0 {
		if head {
			if bytes < len(input) {
				input = input[:bytes]
			}
		} else if bytes < len(input) {
			input = input[len(input)-bytes:]
		}
		env.Stdio.Print(input)
		return status
	}
	lines := splitLines(input)
	if head {
		if n < len(lines) {
			lines = lines[:n]
		}
	} else if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		env.Stdio.Println(line)
	}
	return status
}

func wcCmd(env *interp.Env, args []string) int {
	var countLines, countWords, countBytes bool
	files, flagStatus := core.ParseBoolFlags(env.Stdio, "wc", args, map[byte]*bool{
		'l': &countLines,
		'w': &countWords,
		'c': &countBytes,
	})
	if flagStatus != core.ExitSuccess {
		return flagStatus
	}
	if !countLines && !countWords && !countBytes {
		countLines, countWords, countBytes = true, true, true
	}
	input, status := readInput(env, "wc", files)
	var cols []string
	if countLines {
		cols = append(cols, strconv.Itoa(strings.Count(input, "\n")))
	}
	if countWords {
		cols = append(cols, strconv.Itoa(len(strings.Fields(input))))
	}
	if countBytes {
		cols = append(cols, strconv.Itoa(len(input)))
	}
	env.Stdio.Println(strings.Join(cols, " "))
	return status
}

func sortCmd(env *interp.Env, args []string) int {
	var reverse, numeric, unique bool
	files, flagStatus := core.ParseBoolFlags(env.Stdio, "sort", args, map[byte]*bool{
		'r': &reverse,
		'n': &numeric,
		'u': &unique,
	})
	if flagStatus != core.ExitSuccess {
		return flagStatus
	}
	input, status := readInput(env, "sort", files)
	lines := splitLines(input)
	if numeric {
		sort.SliceStable(lines, func(i, j int) bool {
			a, _ := strconv.ParseFloat(strings.TrimSpace(lines[i]), 64)
			b, _ := strconv.ParseFloat(strings.TrimSpace(lines[j]), 64)
			return a < b
		})
	} else {
		sort.Strings(lines)
	}
	if reverse {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}
	var prev string
	first := true
	for _, line := range lines {
		if unique && !first && line == prev {
			continue
		}
		env.Stdio.Println(line)
		prev = line
		first = false
	}
	return status
}

func uniqCmd(env *interp.Env, args []string) int {
	var count, dupsOnly, uniqOnly bool
	files, flagStatus := core.ParseBoolFlags(env.Stdio, "uniq", args, map[byte]*bool{
		'c': &count,
		'd': &dupsOnly,
		'u': &uniqOnly,
	})
	if flagStatus != core.ExitSuccess {
		return flagStatus
	}
	input, status := readInput(env, "uniq", files)
	lines := splitLines(input)
	emit := func(line string, n int) {
		if dupsOnly && n < 2 {
			return
		}
		if uniqOnly && n > 1 {
			return
		}
		if count {
			env.Stdio.Printf("%7d %s\n", n, line)
		} else {
			env.Stdio.Println(line)
		}
	}
	for i := 0; i < len(lines); {
		j := i
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		emit(lines[i], j-i)
		i = j
	}
	return status
}

func cutCmd(env *interp.Env, args []string) int {
	delim := "\t"
	var fieldSpec, charSpec string
	var files []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-d" && i+1 < len(args):
			i++
			delim = args[i]
		case strings.HasPrefix(arg, "-d") && len(arg) > 2:
			delim = arg[2:]
		case arg == "-f" && i+1 < len(args):
			i++
			fieldSpec = args[i]
		case strings.HasPrefix(arg, "-f") && len(arg) > 2:
			fieldSpec = arg[2:]
		case arg == "-c" && i+1 < len(args):
			i++
			charSpec = args[i]
		case strings.HasPrefix(arg, "-c") && len(arg) > 2:
			charSpec = arg[2:]
		case len(arg) > 1 && arg[0] == '-' && arg != "-":
			return core.UsageError(env.Stdio, "cut", "invalid option -- '"+arg+"'")
		default:
			files = append(files, arg)
		}
	}
	if fieldSpec == "" && charSpec == "" {
		return core.UsageError(env.Stdio, "cut", "you must specify a list of fields or characters")
	}
	input, status := readInput(env, "cut", files)
	for _, line := range splitLines(input) {
		if charSpec != "" {
			runes := []rune(line)
			var b strings.Builder
			for _, rg := range parseRanges(charSpec, len(runes)) {
				for i := rg[0]; i <= rg[1] && i <= len(runes); i++ {
					b.WriteRune(runes[i-1])
				}
			}
			env.Stdio.Println(b.String())
			continue
		}
		if !strings.Contains(line, delim) {
			env.Stdio.Println(line)
			continue
		}
		parts := strings.Split(line, delim)
		var picked []string
		for _, rg := range parseRanges(fieldSpec, len(parts)) {
			for i := rg[0]; i <= rg[1] && i <= len(parts); i++ {
				picked = append(picked, parts[i-1])
			}
		}
		env.Stdio.Println(strings.Join(picked, delim))
	}
	return status
}

// parseRanges parses a cut-style list such as "1,3-5" or "2-". max
// bounds open-ended ranges.
func parseRanges(spec string, max int) [][2]int {
	var out [][2]int
	for _, piece := range strings.Split(spec, ",") {
		lo, hi, found := strings.Cut(piece, "-")
		a, err := strconv.Atoi(lo)
		if err != nil || a < 1 {
			continue
		}
		b := a
		if found {
			if hi == "" {
				b = max
			} else if v, err := strconv.Atoi(hi); err == nil {
				b = v
			}
		}
		if b >= a {
			out = append(out, [2]int{a, b})
		}
	}
	return out
}

func trCmd(env *interp.Env, args []string) int {
	del := false
	squeeze := false
	var sets []string
	for _, arg := range args {
		switch arg {
		case "-d":
			del = true
		case "-s":
			squeeze = true
		default:
			sets = append(sets, arg)
		}
	}
	if len(sets) == 0 || (!del && len(sets) < 2) {
		return core.UsageError(env.Stdio, "tr", "missing operand")
	}
	input, _ := readInput(env, "tr", nil)
	set1 := expandTrSet(sets[0])
	if del {
		member := make(map[rune]bool, len(set1))
		for _, r := range set1 {
			member[r] = true
		}
		var b strings.Builder
		for _, r := range input {
			if !member[r] {
				b.WriteRune(r)
			}
		}
		env.Stdio.Print(b.String())
		return core.ExitSuccess
	}
	set2 := expandTrSet(sets[1])
	mapping := make(map[rune]rune, len(set1))
	for i, r := range set1 {
		if len(set2) == 0 {
			break
		}
		j := i
		if j >= len(set2) {
			j = len(set2) - 1
		}
		mapping[r] = set2[j]
	}
	var b strings.Builder
	var last rune = -1
	for _, r := range input {
		if to, ok := mapping[r]; ok {
			r = to
		}
		if squeeze && r == last {
			if _, translated := mapping[r]; translated {
				continue
			}
		}
		b.WriteRune(r)
		last = r
	}
	env.Stdio.Print(b.String())
	return core.ExitSuccess
}

// expandTrSet expands ranges (a-z) and the common character classes.
func expandTrSet(s string) []rune {
	switch s {
	case "[:upper:]":
		s = "A-Z"
	case "[:lower:]":
		s = "a-z"
	case "[:digit:]":
		s = "0-9"
	case "[:space:]":
		return []rune{' ', '\t', '\n', '\r', '\v', '\f'}
	case "[:alnum:]":
		s = "a-zA-Z0-9"
	}
	var out []rune
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' && runes[i+2] >= runes[i] {
			for r := runes[i]; r <= runes[i+2]; r++ {
				out = append(out, r)
			}
			i += 2
			continue
		}
		if runes[i] == '\\' && i+1 < len(runes) {
			i++
			switch runes[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, runes[i])
			}
			continue
		}
		out = append(out, runes[i])
	}
	return out
}

func revCmd(env *interp.Env, args []string) int {
	input, status := readInput(env, "rev", args)
	for _, line := range splitLines(input) {
		runes := []rune(line)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		env.Stdio.Println(string(runes))
	}
	return status
}

func base64Cmd(env *interp.Env, args []string) int {
	decode := false
	flags, files := splitFlags(args)
	for _, f := range flags {
		switch f {
		case "-d", "--decode":
			decode = true
		default:
			return core.UsageError(env.Stdio, "base64", "invalid option -- '"+f+"'")
		}
	}
	input, status := readInput(env, "base64", files)
	if decode {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(input))
		if err != nil {
			env.Stdio.Errorf("base64: invalid input\n")
			return core.ExitFailure
		}
		env.Stdio.Print(string(data))
		return status
	}
	env.Stdio.Println(base64.StdEncoding.EncodeToString([]byte(input)))
	return status
}

func xargsCmd(env *interp.Env, args []string) int {
	perCall := 0
	var cmd []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-n" && i+1 < len(args) {
			i++
			v, err := strconv.Atoi(args[i])
			if err != nil || v < 1 {
				return core.UsageError(env.Stdio, "xargs", "invalid number: '"+args[i]+"'")
			}
			perCall = v
			continue
		}
		cmd = args[i:]
		break
	}
	if len(cmd) == 0 {
		cmd = []string{"echo"}
	}
	input, _ := io.ReadAll(env.Stdio.In)
	items := strings.Fields(string(input))
	if len(items) == 0 {
		return core.ExitSuccess
	}
	status := 0
	for len(items) > 0 {
		batch := items
		if perCall > 0 && perCall < len(items) {
			batch = items[:perCall]
		}
		items = items[len(batch):]
		callArgs := append(append([]string(nil), cmd[1:]...), batch...)
		if rc := env.In.RunCommand(cmd[0], callArgs, core.Stdio{In: strings.NewReader(""), Out: env.Stdio.Out, Err: env.Stdio.Err}); rc != 0 {
			status = rc
		}
	}
	return status
}
