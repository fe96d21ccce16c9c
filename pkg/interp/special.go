package interp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/parser"
	"github.com/shellbox/shellbox/pkg/vfs"
)

// specialFn is a builtin that needs interpreter state: scope, the
// working directory, positional parameters, or control flow.
type specialFn func(ctx context.Context, args []string, io execIO) (int, error)

func (in *Interp) specialBuiltin(name string) (specialFn, bool) {
	switch name {
	case ":":
		return func(context.Context, []string, execIO) (int, error) { return 0, nil }, true
	case "cd":
		return in.builtinCd, true
	case "exit":
		return in.builtinExit, true
	case "return":
		return in.builtinReturn, true
	case "break":
		return in.builtinBreak, true
	case "continue":
		return in.builtinContinue, true
	case "shift":
		return in.builtinShift, true
	case "set":
		return in.builtinSet, true
	case "export":
		return in.builtinExport, true
	case "unset":
		return in.builtinUnset, true
	case "local":
		return in.builtinLocal, true
	case "eval":
		return in.builtinEval, true
	case "source", ".":
		return in.builtinSource, true
	case "read":
		return in.builtinRead, true
	case "type":
		return in.builtinType, true
	case "command":
		return in.builtinCommand, true
	}
	return nil, false
}

func (in *Interp) builtinCd(_ context.Context, args []string, io execIO) (int, error) {
	target := in.home()
	if len(args) > 0 {
		target = args[0]
	}
	if target == "-" {
		if prev := in.scope.get("OLDPWD").str(); prev != "" {
			target = prev
			fmt.Fprintln(io.out, target)
		} else {
			fmt.Fprintln(io.err, "cd: OLDPWD not set")
			return core.ExitFailure, nil
		}
	}
	path := vfs.Normalize(in.cwd, target)
	meta, err := in.fs.Stat(path)
	if err != nil {
		fmt.Fprintf(io.err, "cd: %s: No such file or directory\n", target)
		return core.ExitFailure, nil
	}
	if !meta.IsDir() {
		fmt.Fprintf(io.err, "cd: %s: Not a directory\n", target)
		return core.ExitFailure, nil
	}
	in.scope.set("OLDPWD", in.cwd)
	in.cwd = path
	in.scope.set("PWD", path)
	return 0, nil
}

func (in *Interp) builtinExit(_ context.Context, args []string, io execIO) (int, error) {
	status := in.lastStatus
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(io.err, "exit: %s: numeric argument required\n", args[0])
			n = core.ExitUsage
		}
		status = n & 0xff
	}
	return status, &exitErr{status: status}
}

func (in *Interp) builtinReturn(_ context.Context, args []string, io execIO) (int, error) {
	status := in.lastStatus
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(io.err, "return: %s: numeric argument required\n", args[0])
			n = core.ExitUsage
		}
		status = n & 0xff
	}
	return status, &returnErr{status: status}
}

func parseLevel(name string, args []string, io execIO) (int, int) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(io.err, "%s: %s: numeric argument required\n", name, args[0])
			return 0, core.ExitUsage
		}
		n = v
	}
	return n, 0
}

func (in *Interp) builtinBreak(_ context.Context, args []string, io execIO) (int, error) {
	n, status := parseLevel("break", args, io)
	if status != 0 {
		return status, nil
	}
	return 0, &breakErr{n: n}
}

func (in *Interp) builtinContinue(_ context.Context, args []string, io execIO) (int, error) {
	n, status := parseLevel("continue", args, io)
	if status != 0 {
		return status, nil
	}
	return 0, &continueErr{n: n}
}

func (in *Interp) builtinShift(_ context.Context, args []string, io execIO) (int, error) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			fmt.Fprintf(io.err, "shift: %s: numeric argument required\n", args[0])
			return core.ExitUsage, nil
		}
		n = v
	}
	if n > len(in.params) {
		return core.ExitFailure, nil
	}
	in.params = in.params[n:]
	return 0, nil
}

func (in *Interp) builtinSet(_ context.Context, args []string, io execIO) (int, error) {
	if len(args) == 0 {
		for _, name := range in.scope.names() {
			fmt.Fprintf(io.out, "%s=%s\n", name, in.scope.get(name).str())
		}
		return 0, nil
	}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-e":
			in.errExit = true
		case "+e":
			in.errExit = false
		case "--":
			in.params = append([]string(nil), args[i+1:]...)
			return 0, nil
		default:
			fmt.Fprintf(io.err, "set: %s: invalid option\n", args[i])
			return core.ExitUsage, nil
		}
	}
	return 0, nil
}

func (in *Interp) builtinExport(_ context.Context, args []string, io execIO) (int, error) {
	if len(args) == 0 {
		for _, name := range in.scope.names() {
			v := in.scope.get(name)
			if v != nil && v.exported {
				fmt.Fprintf(io.out, "declare -x %s=%q\n", name, v.str())
			}
		}
		return 0, nil
	}
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if !isValidVarName(name) {
			fmt.Fprintf(io.err, "export: `%s': not a valid identifier\n", arg)
			return core.ExitFailure, nil
		}
		if hasValue {
			in.scope.set(name, value)
		}
		in.scope.export(name)
	}
	return 0, nil
}

func (in *Interp) builtinUnset(_ context.Context, args []string, _ execIO) (int, error) {
	funcsOnly := false
	for _, arg := range args {
		if arg == "-f" {
			funcsOnly = true
			continue
		}
		if arg == "-v" {
			funcsOnly = false
			continue
		}
		if funcsOnly {
			delete(in.funcs, arg)
		} else {
			in.scope.unset(arg)
		}
	}
	return 0, nil
}

func (in *Interp) builtinLocal(_ context.Context, args []string, io execIO) (int, error) {
	for _, arg := range args {
		name, value, _ := strings.Cut(arg, "=")
		if !isValidVarName(name) {
			fmt.Fprintf(io.err, "local: `%s': not a valid identifier\n", arg)
			return core.ExitFailure, nil
		}
		// Outside a function this binds at the root scope.
		in.scope.setLocal(name, value)
	}
	return 0, nil
}

func (in *Interp) builtinEval(ctx context.Context, args []string, io execIO) (int, error) {
	src := strings.Join(args, " ")
	if strings.TrimSpace(src) == "" {
		return 0, nil
	}
	script, err := parser.Parse(src)
	if err != nil {
		fmt.Fprintf(io.err, "eval: %v\n", err)
		return core.ExitFailure, nil
	}
	return in.execList(ctx, script.Commands, io)
}

func (in *Interp) builtinSource(ctx context.Context, args []string, io execIO) (int, error) {
	if len(args) == 0 {
		fmt.Fprintln(io.err, "source: filename argument required")
		return core.ExitUsage, nil
	}
	path := vfs.Normalize(in.cwd, args[0])
	data, err := in.fs.ReadFile(path)
	if err != nil {
		fmt.Fprintf(io.err, "source: %s: No such file or directory\n", args[0])
		return core.ExitFailure, nil
	}
	script, perr := parser.Parse(string(data))
	if perr != nil {
		fmt.Fprintf(io.err, "source: %v\n", perr)
		return core.ExitFailure, nil
	}
	savedParams := in.params
	if len(args) > 1 {
		in.params = args[1:]
	}
	status, rerr := in.execList(ctx, script.Commands, io)
	in.params = savedParams
	if rerr != nil {
		var ret *returnErr
		if errors.As(rerr, &ret) {
			return ret.status, nil
		}
		return status, rerr
	}
	return status, nil
}

func (in *Interp) builtinRead(_ context.Context, args []string, io execIO) (int, error) {
	raw := false
	var names []string
	for _, arg := range args {
		if arg == "-r" {
			raw = true
			continue
		}
		names = append(names, arg)
	}
	line, ok := readLine(io.in)
	if !raw {
		line = strings.ReplaceAll(line, "\\", "")
	}
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	if len(names) == 1 {
		in.scope.set(names[0], line)
	} else {
		fields := strings.Fields(line)
		for i, name := range names {
			switch {
			case i == len(names)-1 && i < len(fields):
				in.scope.set(name, strings.Join(fields[i:], " "))
			case i < len(fields):
				in.scope.set(name, fields[i])
			default:
				in.scope.set(name, "")
			}
		}
	}
	if !ok {
		return core.ExitFailure, nil
	}
	return 0, nil
}

func (in *Interp) builtinType(_ context.Context, args []string, io execIO) (int, error) {
	status := 0
	for _, name := range args {
		switch {
		case in.isSpecialName(name):
			fmt.Fprintf(io.out, "%s is a shell builtin\n", name)
		case in.funcs[name] != nil:
			fmt.Fprintf(io.out, "%s is a function\n", name)
		default:
			if _, ok := in.reg.Lookup(name); ok {
				fmt.Fprintf(io.out, "%s is a shell builtin\n", name)
			} else {
				fmt.Fprintf(io.err, "type: %s: not found\n", name)
				status = core.ExitFailure
			}
		}
	}
	return status, nil
}

func (in *Interp) builtinCommand(ctx context.Context, args []string, io execIO) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	if args[0] == "-v" {
		status := 0
		for _, name := range args[1:] {
			if in.isSpecialName(name) || in.funcs[name] != nil {
				fmt.Fprintln(io.out, name)
				continue
			}
			if _, ok := in.reg.Lookup(name); ok {
				fmt.Fprintln(io.out, name)
			} else {
				status = core.ExitFailure
			}
		}
		return status, nil
	}
	// Bypass functions, keep builtins.
	name := args[0]
	if fn, ok := in.specialBuiltin(name); ok {
		return fn(ctx, args[1:], io)
	}
	if fn, ok := in.reg.Lookup(name); ok {
		stdio := core.Stdio{In: io.in, Out: io.out, Err: io.err}
		env := &Env{Stdio: &stdio, FS: in.fs, In: in}
		return fn(env, args[1:]), nil
	}
	fmt.Fprintf(io.err, "%s: command not found\n", name)
	return core.ExitNotFound, nil
}

func (in *Interp) isSpecialName(name string) bool {
	_, ok := in.specialBuiltin(name)
	return ok
}

func isValidVarName(s string) bool {
	if s == "" || !isVarStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isVarChar(s[i]) {
			return false
		}
	}
	return true
}
