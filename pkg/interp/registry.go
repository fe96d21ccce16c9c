package interp

import (
	"sort"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/vfs"
)

// Env is the execution context handed to a builtin: its stdio streams,
// the virtual filesystem, and a handle back to the interpreter for
// variable and directory state.
type Env struct {
	Stdio *core.Stdio
	FS    *vfs.FS
	In    *Interp
}

// Cwd returns the current working directory.
func (e *Env) Cwd() string { return e.In.cwd }

// Path resolves p against the working directory.
func (e *Env) Path(p string) string { return vfs.Normalize(e.In.cwd, p) }

// Var returns the value of a shell variable.
func (e *Env) Var(name string) string { return e.In.scope.get(name).str() }

// BuiltinFunc is one command implementation. It returns the exit
// status.
type BuiltinFunc func(env *Env, args []string) int

// Registry maps command names to implementations. Host-registered
// scripted commands share the same table as the built-in ones.
type Registry struct {
	cmds map[string]BuiltinFunc
	desc map[string]string
}

func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]BuiltinFunc), desc: make(map[string]string)}
}

// Register adds or replaces a command.
func (r *Registry) Register(name, description string, fn BuiltinFunc) {
	r.cmds[name] = fn
	r.desc[name] = description
}

// Lookup returns the implementation for name.
func (r *Registry) Lookup(name string) (BuiltinFunc, bool) {
	fn, ok := r.cmds[name]
	return fn, ok
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cmds))
	for n := range r.cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Description returns the one-line description for name.
func (r *Registry) Description(name string) string { return r.desc[name] }

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.cmds) }
