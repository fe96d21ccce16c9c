package builtins

import (
	"strings"

	goawkinterp "github.com/benhoyt/goawk/interp"
	goawkparser "github.com/benhoyt/goawk/parser"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
)

// awkCmd wraps goawk over the virtual filesystem: named files are read
// from the VFS and concatenated onto the program's stdin.
func awkCmd(env *interp.Env, args []string) int {
	var program string
	var vars []string
	var files []string
	haveProgram := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-F":
			if i+1 >= len(args) {
				return core.UsageError(env.Stdio, "awk", "option requires an argument -- 'F'")
			}
			i++
			vars = append(vars, "FS", args[i])
		case strings.HasPrefix(arg, "-F") && len(arg) > 2:
			vars = append(vars, "FS", arg[2:])
		case arg == "-v":
			if i+1 >= len(args) {
				return core.UsageError(env.Stdio, "awk", "option requires an argument -- 'v'")
			}
			i++
			name, value, ok := strings.Cut(args[i], "=")
			if !ok {
				return core.UsageError(env.Stdio, "awk", "invalid -v assignment: '"+args[i]+"'")
			}
			vars = append(vars, name, value)
		case len(arg) > 1 && arg[0] == '-' && arg != "-":
			return core.UsageError(env.Stdio, "awk", "invalid option -- '"+arg+"'")
		default:
			if !haveProgram {
				program = arg
				haveProgram = true
			} else {
				files = append(files, arg)
			}
		}
	}
	if !haveProgram {
		return core.UsageError(env.Stdio, "awk", "missing program text")
	}

	prog, err := goawkparser.ParseProgram([]byte(program), nil)
	if err != nil {
		env.Stdio.Errorf("awk: %v\n", err)
		return core.ExitUsage
	}

	input, status := readInput(env, "awk", files)
	config := &goawkinterp.Config{
		Argv0:  "awk",
		Stdin:  strings.NewReader(input),
		Output: env.Stdio.Out,
		Error:  env.Stdio.Err,
		Vars:   vars,
		// The sandbox must not reach host processes or files.
		NoExec:       true,
		NoFileWrites: true,
		NoFileReads:  true,
	}
	rc, err := goawkinterp.ExecProgram(prog, config)
	if err != nil {
		env.Stdio.Errorf("awk: %v\n", err)
		return core.ExitUsage
	}
	if rc != 0 {
		return rc
	}
	return status
}
