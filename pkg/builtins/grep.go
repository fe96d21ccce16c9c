package builtins

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
)

type grepOpts struct {
	ignoreCase bool
	invert     bool
	lineNum    bool
	countOnly  bool
	quiet      bool
	recursive  bool
	fixed      bool
	wordMatch  bool
}

func grepCmd(env *interp.Env, args []string) int {
	opts := grepOpts{}
	var operands []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			operands = append(operands, args[i+1:]...)
			break
		}
		if len(arg) > 1 && arg[0] == '-' {
			for _, c := range arg[1:] {
				switch c {
				case 'i':
					opts.ignoreCase = true
				case 'v':
					opts.invert = true
				case 'n':
					opts.lineNum = true
				case 'c':
					opts.countOnly = true
				case 'q':
					opts.quiet = true
				case 'r', 'R':
					opts.recursive = true
				case 'F':
					opts.fixed = true
				case 'w':
					opts.wordMatch = true
				case 'E':
					// Patterns are extended syntax already.
				default:
					return core.UsageError(env.Stdio, "grep", "invalid option -- '"+string(c)+"'")
				}
			}
			continue
		}
		operands = append(operands, arg)
	}
	if len(operands) == 0 {
		return core.UsageError(env.Stdio, "grep", "missing pattern")
	}
	pattern := operands[0]
	files := operands[1:]

	if opts.fixed {
		pattern = regexp.QuoteMeta(pattern)
	}
	if opts.wordMatch {
		pattern = `\b(?:` + pattern + `)\b`
	}
	if opts.ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		env.Stdio.Errorf("grep: invalid pattern: %v\n", err)
		return core.ExitUsage
	}

	matched := false
	status := 0
	search := func(label, content string, showName bool) {
		count := 0
		for num, line := range splitLines(content) {
			hit := re.MatchString(line)
			if opts.invert {
				hit = !hit
			}
			if !hit {
				continue
			}
			matched = true
			count++
			if opts.quiet || opts.countOnly {
				continue
			}
			var prefix string
			if showName {
				prefix = label + ":"
			}
			if opts.lineNum {
				prefix += strconv.Itoa(num+1) + ":"
			}
			env.Stdio.Println(prefix + line)
		}
		if opts.countOnly && !opts.quiet {
			if showName {
				env.Stdio.Printf("%s:%d\n", label, count)
			} else {
				env.Stdio.Printf("%d\n", count)
			}
		}
	}

	if opts.recursive {
		if len(files) == 0 {
			files = []string{"."}
		}
		for _, f := range files {
			grepWalk(env, f, env.Path(f), search)
		}
	} else if len(files) == 0 {
		input, _ := readInput(env, "grep", nil)
		search("", input, false)
	} else {
		showName := len(files) > 1
		for _, f := range files {
			p := env.Path(f)
			meta, err := env.FS.Stat(p)
			if err != nil {
				env.Stdio.Errorf("grep: %s: No such file or directory\n", f)
				status = core.ExitUsage
				continue
			}
			if meta.IsDir() {
				env.Stdio.Errorf("grep: %s: Is a directory\n", f)
				status = core.ExitUsage
				continue
			}
			data, _ := env.FS.ReadFile(p)
			search(f, string(data), showName)
		}
	}

	if status != 0 {
		return status
	}
	if matched {
		return core.ExitSuccess
	}
	return core.ExitFailure
}

func grepWalk(env *interp.Env, display, full string, search func(string, string, bool)) {
	meta, err := env.FS.Stat(full)
	if err != nil {
		env.Stdio.Errorf("grep: %s: No such file or directory\n", display)
		return
	}
	if !meta.IsDir() {
		data, _ := env.FS.ReadFile(full)
		search(display, string(data), true)
		return
	}
	entries, _ := env.FS.ReadDir(full)
	for _, e := range entries {
		grepWalk(env, strings.TrimSuffix(display, "/")+"/"+e.Name, full+"/"+e.Name, search)
	}
}
