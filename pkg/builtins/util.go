package builtins

import (
	"io"
	"strings"

	"github.com/shellbox/shellbox/pkg/interp"
)

// readInput gathers command input: the named files concatenated, or
// stdin when no files are given. "-" names stdin.
func readInput(env *interp.Env, name string, files []string) (string, int) {
	if len(files) == 0 {
		data, _ := io.ReadAll(env.Stdio.In)
		return string(data), 0
	}
	var b strings.Builder
	status := 0
	for _, f := range files {
		if f == "-" {
			data, _ := io.ReadAll(env.Stdio.In)
			b.Write(data)
			continue
		}
		data, err := env.FS.ReadFile(env.Path(f))
		if err != nil {
			env.Stdio.Errorf("%s: %s: No such file or directory\n", name, f)
			status = 1
			continue
		}
		b.Write(data)
	}
	return b.String(), status
}

// splitLines splits s into lines without a trailing empty element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// splitFlags separates option arguments from operands. A bare "-" and
// anything after "--" are operands.
func splitFlags(args []string) (flags []string, rest []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i+1:]...)
			break
		}
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)
		} else {
			rest = append(rest, arg)
		}
	}
	return flags, rest
}
