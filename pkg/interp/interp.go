// Package interp executes parsed scripts against the virtual
// filesystem. All commands are builtins dispatched in-process; nothing
// ever reaches the host.
package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/limits"
	"github.com/shellbox/shellbox/pkg/parser"
	"github.com/shellbox/shellbox/pkg/vfs"
)

// shellPID is the fixed value of $$. There is no host process behind a
// session, so the pid is synthetic and stable.
const shellPID = 1000

// execIO carries the stream plumbing for one command. Pipelines and
// redirections rebind these per stage.
type execIO struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// Control-flow sentinels carried through the error return.
type breakErr struct{ n int }
type continueErr struct{ n int }
type returnErr struct{ status int }
type exitErr struct{ status int }

func (e *breakErr) Error() string    { return "break" }
func (e *continueErr) Error() string { return "continue" }
func (e *returnErr) Error() string   { return "return" }
func (e *exitErr) Error() string     { return "exit" }

// Interp is the script executor. It is not safe for concurrent use;
// the session serializes access.
type Interp struct {
	fs       *vfs.FS
	reg      *Registry
	lim      limits.Limits
	counters *limits.Counters

	scope      *scope
	cwd        string
	params     []string
	shellName  string
	funcs      map[string]*parser.FuncDef
	lastStatus int

	errExit     bool
	condDepth   int
	substStatus int
}

// New builds an interpreter over fs dispatching through reg.
func New(fs *vfs.FS, reg *Registry, lim limits.Limits) *Interp {
	return &Interp{
		fs:        fs,
		reg:       reg,
		lim:       lim,
		counters:  &limits.Counters{},
		scope:     newScope(nil),
		cwd:       "/home/user",
		shellName: "bash",
		funcs:     make(map[string]*parser.FuncDef),
	}
}

// FS returns the underlying filesystem.
func (in *Interp) FS() *vfs.FS { return in.fs }

// Counters returns the fuel counters.
func (in *Interp) Counters() *limits.Counters { return in.counters }

// Cwd returns the working directory.
func (in *Interp) Cwd() string { return in.cwd }

// SetCwd sets the working directory without validation.
func (in *Interp) SetCwd(p string) { in.cwd = p }

// SetVar assigns a shell variable.
func (in *Interp) SetVar(name, value string) { in.scope.set(name, value) }

// GetVar reads a shell variable.
func (in *Interp) GetVar(name string) string { return in.scope.get(name).str() }

// Export marks a variable as exported.
func (in *Interp) Export(name string) { in.scope.export(name) }

// CommandNames lists all dispatchable command names.
func (in *Interp) CommandNames() []string { return in.reg.Names() }

// Registry returns the command registry.
func (in *Interp) Registry() *Registry { return in.reg }

// ExportedVars returns NAME=value strings for exported variables,
// sorted by name.
func (in *Interp) ExportedVars() []string {
	var out []string
	for _, name := range in.scope.names() {
		if v := in.scope.get(name); v != nil && v.exported {
			out = append(out, name+"="+v.str())
		}
	}
	return out
}

// RunCommand dispatches one already-expanded command. Used by builtins
// such as xargs that invoke other commands.
func (in *Interp) RunCommand(name string, args []string, stdio core.Stdio) int {
	if err := in.counters.TickCommand(in.lim); err != nil {
		fmt.Fprintf(stdio.Err, "%v\n", err)
		return 1
	}
	status, err := in.dispatch(context.Background(), name, args, execIO{in: stdio.In, out: stdio.Out, err: stdio.Err})
	if err != nil {
		var ex *exitErr
		if errors.As(err, &ex) {
			return ex.status
		}
		fmt.Fprintf(stdio.Err, "%v\n", err)
		return 1
	}
	return status
}

// Run executes a parsed script. The int is the script's exit status.
// A non-nil error reports an interpreter-level failure: an exceeded
// execution limit or a cancelled context.
func (in *Interp) Run(ctx context.Context, script *parser.Script, stdio core.Stdio) (int, error) {
	io := execIO{in: stdio.In, out: stdio.Out, err: stdio.Err}
	status, err := in.execList(ctx, script.Commands, io)
	if err != nil {
		var ex *exitErr
		if errors.As(err, &ex) {
			return ex.status, nil
		}
		var brk *breakErr
		var cont *continueErr
		var ret *returnErr
		if errors.As(err, &brk) || errors.As(err, &cont) {
			return status, nil
		}
		if errors.As(err, &ret) {
			return ret.status, nil
		}
		return status, err
	}
	return status, nil
}

func (in *Interp) execList(ctx context.Context, cmds []parser.Command, io execIO) (int, error) {
	status := 0
	for _, cmd := range cmds {
		var err error
		status, err = in.execCommand(ctx, cmd, io)
		if err != nil {
			return status, err
		}
		if in.errExit && status != 0 && in.condDepth == 0 {
			return status, &exitErr{status: status}
		}
	}
	return status, nil
}

func (in *Interp) execCommand(ctx context.Context, cmd parser.Command, io execIO) (int, error) {
	switch c := cmd.(type) {
	case *parser.SimpleCommand:
		return in.execSimple(ctx, c, io)
	case *parser.Pipeline:
		return in.execPipeline(ctx, c, io)
	case *parser.AndOr:
		return in.execAndOr(ctx, c, io)
	case *parser.If:
		return in.execIf(ctx, c, io)
	case *parser.For:
		return in.execFor(ctx, c, io)
	case *parser.While:
		return in.execWhile(ctx, c, io)
	case *parser.Case:
		return in.execCase(ctx, c, io)
	case *parser.FuncDef:
		in.funcs[c.Name] = c
		in.lastStatus = 0
		return 0, nil
	case *parser.Subshell:
		return in.execSubshell(ctx, c, io)
	case *parser.BraceGroup:
		return in.execGroup(ctx, c.Body, c.Redirects, io)
	}
	return 1, fmt.Errorf("unhandled command node %T", cmd)
}

func (in *Interp) execAndOr(ctx context.Context, ao *parser.AndOr, io execIO) (int, error) {
	in.condDepth++
	status, err := in.execCommand(ctx, ao.Pipelines[0], io)
	in.condDepth--
	if err != nil {
		return status, err
	}
	for i, op := range ao.Ops {
		if op == parser.OpAnd && status != 0 {
			continue
		}
		if op == parser.OpOr && status == 0 {
			continue
		}
		last := i == len(ao.Ops)-1
		if !last {
			in.condDepth++
		}
		status, err = in.execCommand(ctx, ao.Pipelines[i+1], io)
		if !last {
			in.condDepth--
		}
		if err != nil {
			return status, err
		}
	}
	in.lastStatus = status
	return status, nil
}

// execPipeline runs stages in order, buffering each stage's stdout as
// the next stage's stdin. The pipeline's status is the last stage's.
func (in *Interp) execPipeline(ctx context.Context, pl *parser.Pipeline, io execIO) (int, error) {
	if pl.Negate {
		in.condDepth++
		defer func() { in.condDepth-- }()
	}
	stdin := io.in
	status := 0
	for i, stage := range pl.Commands {
		stageIO := execIO{in: stdin, err: io.err}
		var buf *bytes.Buffer
		if i == len(pl.Commands)-1 {
			stageIO.out = io.out
		} else {
			buf = &bytes.Buffer{}
			stageIO.out = buf
		}
		var err error
		status, err = in.execCommand(ctx, stage, stageIO)
		if err != nil {
			return status, err
		}
		if buf != nil {
			stdin = buf
		}
	}
	if pl.Negate {
		if status == 0 {
			status = 1
		} else {
			status = 0
		}
	}
	in.lastStatus = status
	return status, nil
}

func (in *Interp) execIf(ctx context.Context, node *parser.If, io execIO) (int, error) {
	io, flush, err := in.applyRedirects(io, node.Redirects)
	if err != nil {
		return in.redirectFailed(io, err)
	}
	status, cerr := in.execIfBody(ctx, node, io)
	if cerr != nil {
		return status, cerr
	}
	return status, flush()
}

func (in *Interp) execIfBody(ctx context.Context, node *parser.If, io execIO) (int, error) {
	in.condDepth++
	status, err := in.execList(ctx, node.Cond, io)
	in.condDepth--
	if err != nil {
		return status, err
	}
	if status == 0 {
		return in.execList(ctx, node.Then, io)
	}
	for _, e := range node.Elifs {
		in.condDepth++
		status, err = in.execList(ctx, e.Cond, io)
		in.condDepth--
		if err != nil {
			return status, err
		}
		if status == 0 {
			return in.execList(ctx, e.Then, io)
		}
	}
	if len(node.Else) > 0 {
		return in.execList(ctx, node.Else, io)
	}
	in.lastStatus = 0
	return 0, nil
}

func (in *Interp) execFor(ctx context.Context, node *parser.For, io execIO) (int, error) {
	io, flush, err := in.applyRedirects(io, node.Redirects)
	if err != nil {
		return in.redirectFailed(io, err)
	}
	var words []string
	if node.HasIn {
		for _, w := range node.Words {
			fields, err := in.expandWord(io, w)
			if err != nil {
				return in.expansionFailed(io, err)
			}
			words = append(words, fields...)
		}
	} else {
		words = in.params
	}
	status := 0
	for _, word := range words {
		if err := in.counters.TickLoop(in.lim); err != nil {
			return status, err
		}
		in.scope.set(node.Var, word)
		var err error
		status, err = in.execList(ctx, node.Body, io)
		if stop, st, lerr := loopControl(err, status); stop {
			return st, lerr
		} else if lerr == errLoopBreak {
			break
		}
	}
	if ferr := flush(); ferr != nil {
		fmt.Fprintf(io.err, "%v\n", ferr)
		status = 1
	}
	return status, nil
}

func (in *Interp) execWhile(ctx context.Context, node *parser.While, io execIO) (int, error) {
	io, flush, err := in.applyRedirects(io, node.Redirects)
	if err != nil {
		return in.redirectFailed(io, err)
	}
	status := 0
	for {
		if err := in.counters.TickLoop(in.lim); err != nil {
			return status, err
		}
		in.condDepth++
		cond, cerr := in.execList(ctx, node.Cond, io)
		in.condDepth--
		if cerr != nil {
			return cond, cerr
		}
		done := cond != 0
		if node.Until {
			done = cond == 0
		}
		if done {
			break
		}
		var berr error
		status, berr = in.execList(ctx, node.Body, io)
		if stop, st, lerr := loopControl(berr, status); stop {
			return st, lerr
		} else if lerr == errLoopBreak {
			break
		}
	}
	if ferr := flush(); ferr != nil {
		fmt.Fprintf(io.err, "%v\n", ferr)
		status = 1
	}
	in.lastStatus = status
	return status, nil
}

// errLoopBreak signals loopControl consumed a break at this level.
var errLoopBreak = errors.New("loop break")

// loopControl interprets an error from a loop body: break and continue
// aimed at this level are absorbed, outer-level ones are rethrown with
// the level decremented.
func loopControl(err error, status int) (stop bool, st int, out error) {
	if err == nil {
		return false, status, nil
	}
	var brk *breakErr
	if errors.As(err, &brk) {
		if brk.n > 1 {
			return true, status, &breakErr{n: brk.n - 1}
		}
		return false, status, errLoopBreak
	}
	var cont *continueErr
	if errors.As(err, &cont) {
		if cont.n > 1 {
			return true, status, &continueErr{n: cont.n - 1}
		}
		return false, status, nil
	}
	return true, status, err
}

func (in *Interp) execCase(ctx context.Context, node *parser.Case, io execIO) (int, error) {
	io, flush, err := in.applyRedirects(io, node.Redirects)
	if err != nil {
		return in.redirectFailed(io, err)
	}
	subject, err := in.expandWordNoSplit(io, node.Word)
	if err != nil {
		return in.expansionFailed(io, err)
	}
	status := 0
	for _, item := range node.Items {
		matched := false
		for _, pw := range item.Patterns {
			pat, perr := in.expandWordNoSplit(io, pw)
			if perr != nil {
				return in.expansionFailed(io, perr)
			}
			if matchGlob(pat, subject) {
				matched = true
				break
			}
		}
		if matched {
			var cerr error
			status, cerr = in.execList(ctx, item.Body, io)
			if cerr != nil {
				return status, cerr
			}
			break
		}
	}
	if ferr := flush(); ferr != nil {
		fmt.Fprintf(io.err, "%v\n", ferr)
		status = 1
	}
	in.lastStatus = status
	return status, nil
}

// execSubshell runs the body against a cloned variable scope. File
// system changes persist; variable, directory, and option changes do
// not.
func (in *Interp) execSubshell(ctx context.Context, node *parser.Subshell, io execIO) (int, error) {
	io, flush, err := in.applyRedirects(io, node.Redirects)
	if err != nil {
		return in.redirectFailed(io, err)
	}
	savedScope, savedCwd := in.scope, in.cwd
	savedParams, savedErrExit := in.params, in.errExit
	in.scope = in.scope.clone()
	in.params = append([]string(nil), in.params...)

	status, berr := in.execList(ctx, node.Body, io)

	in.scope, in.cwd = savedScope, savedCwd
	in.params, in.errExit = savedParams, savedErrExit

	if berr != nil {
		var ex *exitErr
		if errors.As(berr, &ex) {
			status = ex.status
		} else {
			var brk *breakErr
			var cont *continueErr
			var ret *returnErr
			if !errors.As(berr, &brk) && !errors.As(berr, &cont) && !errors.As(berr, &ret) {
				return status, berr
			}
		}
	}
	if ferr := flush(); ferr != nil {
		fmt.Fprintf(io.err, "%v\n", ferr)
		status = 1
	}
	in.lastStatus = status
	return status, nil
}

func (in *Interp) execGroup(ctx context.Context, body []parser.Command, rs []parser.Redirect, io execIO) (int, error) {
	io, flush, err := in.applyRedirects(io, rs)
	if err != nil {
		return in.redirectFailed(io, err)
	}
	status, berr := in.execList(ctx, body, io)
	if berr != nil {
		return status, berr
	}
	if ferr := flush(); ferr != nil {
		fmt.Fprintf(io.err, "%v\n", ferr)
		status = 1
	}
	return status, nil
}

func (in *Interp) execSimple(ctx context.Context, cmd *parser.SimpleCommand, io execIO) (int, error) {
	if err := ctx.Err(); err != nil {
		return 130, err
	}
	if err := in.counters.TickCommand(in.lim); err != nil {
		return 1, err
	}

	in.substStatus = 0

	// Assignment-only command: no argv, bind in place.
	if cmd.Name == nil {
		for _, a := range cmd.Assignments {
			if err := in.applyAssignment(io, a, false); err != nil {
				return in.expansionFailed(io, err)
			}
		}
		_, flush, err := in.applyRedirects(io, cmd.Redirects)
		if err != nil {
			return in.redirectFailed(io, err)
		}
		if err := flush(); err != nil {
			fmt.Fprintf(io.err, "%v\n", err)
			in.lastStatus = 1
			return 1, nil
		}
		status := in.substStatus
		in.lastStatus = status
		return status, nil
	}

	var argv []string
	fields, err := in.expandWord(io, cmd.Name)
	if err != nil {
		return in.expansionFailed(io, err)
	}
	argv = append(argv, fields...)
	for _, w := range cmd.Args {
		fields, err := in.expandWord(io, w)
		if err != nil {
			return in.expansionFailed(io, err)
		}
		argv = append(argv, fields...)
	}
	if len(argv) == 0 {
		in.lastStatus = 0
		return 0, nil
	}

	cmdIO, flush, err := in.applyRedirects(io, cmd.Redirects)
	if err != nil {
		return in.redirectFailed(io, err)
	}

	// NAME=value prefixes bind for the duration of this command.
	restore, aerr := in.applyTempAssignments(io, cmd.Assignments)
	if aerr != nil {
		return in.expansionFailed(io, aerr)
	}

	status, runErr := in.dispatch(ctx, argv[0], argv[1:], cmdIO)
	restore()
	if runErr != nil {
		return status, runErr
	}
	if ferr := flush(); ferr != nil {
		fmt.Fprintf(io.err, "%s: %v\n", argv[0], ferr)
		status = 1
	}
	in.lastStatus = status
	return status, nil
}

func (in *Interp) dispatch(ctx context.Context, name string, args []string, io execIO) (int, error) {
	if fn, ok := in.specialBuiltin(name); ok {
		return fn(ctx, args, io)
	}
	if fd, ok := in.funcs[name]; ok {
		return in.callFunction(ctx, fd, name, args, io)
	}
	if fn, ok := in.reg.Lookup(name); ok {
		stdio := core.Stdio{In: io.in, Out: io.out, Err: io.err}
		env := &Env{Stdio: &stdio, FS: in.fs, In: in}
		return fn(env, args), nil
	}
	fmt.Fprintf(io.err, "%s: command not found\n", name)
	return core.ExitNotFound, nil
}

func (in *Interp) callFunction(ctx context.Context, fd *parser.FuncDef, name string, args []string, io execIO) (int, error) {
	if err := in.counters.PushFunction(in.lim); err != nil {
		return 1, err
	}
	savedParams := in.params
	savedScope := in.scope
	in.params = args
	in.scope = newScope(in.scope)

	status, err := in.execCommand(ctx, fd.Body, io)

	in.params = savedParams
	in.scope = savedScope
	in.counters.PopFunction()

	if err != nil {
		var ret *returnErr
		if errors.As(err, &ret) {
			status = ret.status
			err = nil
		}
	}
	in.lastStatus = status
	return status, err
}

func (in *Interp) applyAssignment(io execIO, a parser.Assignment, local bool) error {
	if a.IsArr {
		var elems []string
		for _, w := range a.Array {
			fields, err := in.expandWord(io, w)
			if err != nil {
				return err
			}
			elems = append(elems, fields...)
		}
		in.scope.setArray(a.Name, elems)
		return nil
	}
	value, err := in.expandWordNoSplit(io, a.Value)
	if err != nil {
		return err
	}
	if a.Index != "" {
		idxStr, err := in.expandString(io, a.Index)
		if err != nil {
			return err
		}
		idx64, aerr := in.evalArith(idxStr)
		if aerr != nil || idx64 < 0 {
			return &expandError{msg: a.Name + ": bad array subscript"}
		}
		in.scope.setIndex(a.Name, int(idx64), value)
		return nil
	}
	if local {
		in.scope.setLocal(a.Name, value)
	} else {
		in.scope.set(a.Name, value)
	}
	return nil
}

// applyTempAssignments binds prefix assignments and returns a restore
// function.
func (in *Interp) applyTempAssignments(io execIO, as []parser.Assignment) (func(), error) {
	if len(as) == 0 {
		return func() {}, nil
	}
	type saved struct {
		name string
		v    *variable
		had  bool
	}
	var prev []saved
	root := in.scope.root()
	for _, a := range as {
		old, had := root.vars[a.Name]
		var cp *variable
		if had {
			cp = old.clone()
		}
		prev = append(prev, saved{name: a.Name, v: cp, had: had})
		if err := in.applyAssignment(io, a, false); err != nil {
			return func() {}, err
		}
	}
	return func() {
		for i := len(prev) - 1; i >= 0; i-- {
			if prev[i].had {
				root.vars[prev[i].name] = prev[i].v
			} else {
				delete(root.vars, prev[i].name)
			}
		}
	}, nil
}

func (in *Interp) expansionFailed(io execIO, err error) (int, error) {
	var ee *expandError
	if errors.As(err, &ee) {
		fmt.Fprintf(io.err, "%s\n", ee.msg)
		in.lastStatus = 1
		if ee.fatal {
			return 1, &exitErr{status: 1}
		}
		return 1, nil
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		fmt.Fprintf(io.err, "%s\n", pe.Error())
		in.lastStatus = 1
		return 1, nil
	}
	return 1, err
}

func (in *Interp) redirectFailed(io execIO, err error) (int, error) {
	var ee *expandError
	var pe *parser.ParseError
	if errors.As(err, &ee) || errors.As(err, &pe) {
		return in.expansionFailed(io, err)
	}
	var le *limits.LimitError
	if errors.As(err, &le) {
		return 1, err
	}
	fmt.Fprintf(io.err, "%v\n", err)
	in.lastStatus = 1
	return 1, nil
}

// commandSubst runs a $() substitution and returns its output with
// trailing newlines trimmed.
func (in *Interp) commandSubst(io execIO, script string) (string, error) {
	s, err := parser.Parse(script)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	subIO := execIO{in: io.in, out: &out, err: io.err}
	status, rerr := in.execList(context.Background(), s.Commands, subIO)
	if rerr != nil {
		var ex *exitErr
		if errors.As(rerr, &ex) {
			status = ex.status
		} else {
			return "", rerr
		}
	}
	in.substStatus = status
	in.lastStatus = status
	return strings.TrimRight(out.String(), "\n"), nil
}

func matchGlob(pattern, s string) bool {
	return vfs.Match(pattern, s)
}

// redirSink buffers output destined for a VFS file until the command
// completes.
type redirSink struct {
	path   string
	buf    *bytes.Buffer
	append bool
}

// applyRedirects rebinds streams per the redirect list. The returned
// flush writes buffered file output back to the VFS and must be called
// after the command finishes.
func (in *Interp) applyRedirects(io execIO, rs []parser.Redirect) (execIO, func() error, error) {
	noop := func() error { return nil }
	if len(rs) == 0 {
		return io, noop, nil
	}
	var sinks []*redirSink
	for _, r := range rs {
		switch r.Kind {
		case parser.RedirErrToOut:
			io.err = io.out
			continue
		case parser.RedirOutToErr:
			io.out = io.err
			continue
		case parser.RedirHereDoc:
			body := r.Body
			if r.Expand {
				expanded, err := in.expandHeredoc(io, body)
				if err != nil {
					return io, noop, err
				}
				body = expanded
			}
			io.in = strings.NewReader(body)
			continue
		}
		target, err := in.expandWordNoSplit(io, r.Target)
		if err != nil {
			return io, noop, err
		}
		switch r.Kind {
		case parser.RedirHereStr:
			io.in = strings.NewReader(target + "\n")
		case parser.RedirIn:
			path := vfs.Normalize(in.cwd, target)
			data, err := in.fs.ReadFile(path)
			if err != nil {
				return io, noop, fmt.Errorf("%s: %w", target, err)
			}
			io.in = bytes.NewReader(data)
		case parser.RedirOut, parser.RedirAppend, parser.RedirErrOut, parser.RedirErrAppend:
			path := vfs.Normalize(in.cwd, target)
			app := r.Kind == parser.RedirAppend || r.Kind == parser.RedirErrAppend
			if !app {
				if err := in.fs.WriteFile(path, nil); err != nil {
					return io, noop, fmt.Errorf("%s: %w", target, err)
				}
			} else if !in.fs.Exists(path) {
				if err := in.fs.WriteFile(path, nil); err != nil {
					return io, noop, fmt.Errorf("%s: %w", target, err)
				}
			}
			sink := &redirSink{path: path, buf: &bytes.Buffer{}, append: app}
			sinks = append(sinks, sink)
			if r.Kind == parser.RedirOut || r.Kind == parser.RedirAppend {
				io.out = sink.buf
			} else {
				io.err = sink.buf
			}
		}
	}
	flush := func() error {
		for _, s := range sinks {
			var err error
			if s.append {
				err = in.fs.AppendFile(s.path, s.buf.Bytes())
			} else {
				err = in.fs.WriteFile(s.path, s.buf.Bytes())
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	return io, flush, nil
}

// readLine reads one newline-terminated line from r without buffering
// past it.
func readLine(r io.Reader) (string, bool) {
	var b strings.Builder
	buf := make([]byte, 1)
	any := false
	for {
		n, err := r.Read(buf)
		if n > 0 {
			any = true
			if buf[0] == '\n' {
				return b.String(), true
			}
			b.WriteByte(buf[0])
		}
		if err != nil {
			return b.String(), any
		}
	}
}
