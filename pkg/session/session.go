// Package session is the embedding surface: a Session owns one virtual
// filesystem, one variable scope, one command registry, and the resource
// counters, and runs scripts against them with Execute. Hosts can expose
// their own callbacks as shell commands with RegisterCommand.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shellbox/shellbox/pkg/builtins"
	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
	"github.com/shellbox/shellbox/pkg/limits"
	"github.com/shellbox/shellbox/pkg/parser"
	"github.com/shellbox/shellbox/pkg/vfs"
)

const (
	defaultUsername = "user"
	defaultHostname = "sandbox"
)

// ExecResult is the outcome of one script execution. Error is empty
// unless execution failed at the interpreter level (exceeded limit,
// cancelled context); a script that merely exits nonzero reports that
// through ExitCode alone.
type ExecResult struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exit_code"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Success reports whether the script ran to completion with status 0.
func (r ExecResult) Success() bool { return r.ExitCode == 0 && r.Error == "" }

// ToolArgs carries the parsed input for a host-registered command.
// Params holds the `--key value` / `--key=value` flags, type-coerced
// per the command's schema. Stdin is the piped input, nil when the
// command received none.
type ToolArgs struct {
	Params map[string]any
	Stdin  *string
}

// Callback is the host side of a registered command. The returned
// string becomes the command's stdout verbatim; a non-nil error is
// written to stderr and yields exit status 1.
type Callback func(args ToolArgs) (string, error)

type envPair struct{ key, value string }

type scriptedTool struct {
	name     string
	desc     string
	schema   map[string]any
	callback Callback
}

type config struct {
	username string
	hostname string
	cwd      string
	env      []envPair
	limits   limits.Limits
	limitSet bool
	fs       *vfs.FS
}

// Builder configures a Session before construction.
type Builder struct {
	cfg config
}

// NewBuilder returns a builder with default limits and identity.
func NewBuilder() *Builder {
	return &Builder{cfg: config{limits: limits.Default()}}
}

// Username sets the sandbox user reported by whoami and $USER.
func (b *Builder) Username(name string) *Builder {
	b.cfg.username = name
	return b
}

// Hostname sets the sandbox host reported by hostname and $HOSTNAME.
func (b *Builder) Hostname(name string) *Builder {
	b.cfg.hostname = name
	return b
}

// Env pre-sets an exported environment variable.
func (b *Builder) Env(key, value string) *Builder {
	b.cfg.env = append(b.cfg.env, envPair{key, value})
	return b
}

// Cwd sets the initial working directory. Default is the user's home.
func (b *Builder) Cwd(dir string) *Builder {
	b.cfg.cwd = dir
	return b
}

// Limits sets the execution ceilings.
func (b *Builder) Limits(l limits.Limits) *Builder {
	b.cfg.limits = l
	b.cfg.limitSet = true
	return b
}

// FS injects a prepared virtual filesystem instead of an empty one.
func (b *Builder) FS(fs *vfs.FS) *Builder {
	b.cfg.fs = fs
	return b
}

// Build constructs the Session.
func (b *Builder) Build() *Session {
	s := &Session{id: uuid.NewString(), cfg: b.cfg}
	s.init(b.cfg.fs)
	return s
}

// Option mutates session configuration in New.
type Option func(*config)

// WithUsername sets the sandbox user.
func WithUsername(name string) Option { return func(c *config) { c.username = name } }

// WithHostname sets the sandbox host.
func WithHostname(name string) Option { return func(c *config) { c.hostname = name } }

// WithEnv pre-sets an exported environment variable.
func WithEnv(key, value string) Option {
	return func(c *config) { c.env = append(c.env, envPair{key, value}) }
}

// WithCwd sets the initial working directory.
func WithCwd(dir string) Option { return func(c *config) { c.cwd = dir } }

// WithLimits sets the execution ceilings.
func WithLimits(l limits.Limits) Option {
	return func(c *config) { c.limits = l; c.limitSet = true }
}

// WithFS injects a prepared virtual filesystem.
func WithFS(fs *vfs.FS) Option { return func(c *config) { c.fs = fs } }

// New constructs a Session with the given options.
func New(opts ...Option) *Session {
	cfg := config{limits: limits.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session{id: uuid.NewString(), cfg: cfg}
	s.init(cfg.fs)
	return s
}

// Session holds all interpreter state persisting across Execute calls.
// Methods serialize on an internal mutex; two scripts never interleave
// against the same Session.
type Session struct {
	mu    sync.Mutex
	id    string
	cfg   config
	fs    *vfs.FS
	in    *interp.Interp
	tools []scriptedTool
}

func (s *Session) username() string {
	if s.cfg.username != "" {
		return s.cfg.username
	}
	return defaultUsername
}

func (s *Session) hostname() string {
	if s.cfg.hostname != "" {
		return s.cfg.hostname
	}
	return defaultHostname
}

func (s *Session) home() string { return "/home/" + s.username() }

// init wires a fresh interpreter around fs, seeding identity, standard
// directories, and configured environment. A nil fs means empty.
func (s *Session) init(fs *vfs.FS) {
	if fs == nil {
		fs = vfs.New()
	}
	reg := interp.NewRegistry()
	builtins.Install(reg)
	in := interp.New(fs, reg, s.cfg.limits)

	home := s.home()
	fs.Mkdir(home, true)
	fs.Mkdir("/tmp", true)

	vars := []envPair{
		{"USER", s.username()},
		{"HOSTNAME", s.hostname()},
		{"HOME", home},
		{"PATH", "/usr/bin:/bin"},
	}
	for _, v := range vars {
		in.SetVar(v.key, v.value)
		in.Export(v.key)
	}
	for _, v := range s.cfg.env {
		in.SetVar(v.key, v.value)
		in.Export(v.key)
	}

	cwd := s.cfg.cwd
	if cwd == "" {
		cwd = home
	} else {
		cwd = vfs.Normalize("/", cwd)
		fs.Mkdir(cwd, true)
	}
	in.SetCwd(cwd)
	in.SetVar("PWD", cwd)
	in.Export("PWD")

	s.fs = fs
	s.in = in

	for _, t := range s.tools {
		s.install(t)
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// FS returns the session's virtual filesystem for pre-population or
// inspection between Execute calls.
func (s *Session) FS() *vfs.FS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs
}

// Cwd returns the script-visible working directory.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in.Cwd()
}

// CommandCount returns the number of registered commands, built-in and
// host-registered alike.
func (s *Session) CommandCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in.Registry().Len()
}

// Execute runs a script to completion and returns its accumulated
// output. State mutations persist for the next call.
func (s *Session) Execute(script string) ExecResult {
	return s.ExecuteContext(context.Background(), script)
}

// ExecuteContext is Execute with cancellation, observed between
// commands. A cancelled context reports through the Error field.
func (s *Session) ExecuteContext(ctx context.Context, script string) ExecResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out, errOut strings.Builder
	res := ExecResult{SessionID: s.id}

	prog, err := parser.Parse(script)
	if err != nil {
		res.Stderr = err.Error() + "\n"
		res.Error = err.Error()
		res.ExitCode = core.ExitUsage
		return res
	}

	stdio := core.Stdio{In: strings.NewReader(""), Out: &out, Err: &errOut}
	status, err := s.in.Run(ctx, prog, stdio)
	res.Stdout = out.String()
	res.Stderr = errOut.String()
	res.ExitCode = status
	if err != nil {
		res.Error = err.Error()
		if status == 0 {
			res.ExitCode = core.ExitFailure
		}
	}
	return res
}

// Reset discards the filesystem, variables, and counters, replacing
// them with fresh instances. Host-registered commands survive; a
// filesystem injected at construction does not come back.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init(nil)
}

// RegisterCommand exposes a host callback as a shell command. The
// schema maps parameter names to JSON-schema property definitions and
// drives flag type coercion; nil means all flag values stay strings.
// Registering an existing name replaces it.
func (s *Session) RegisterCommand(name, description string, schema map[string]any, cb Callback) error {
	if !validCommandName(name) {
		return fmt.Errorf("invalid command name %q", name)
	}
	if cb == nil {
		return fmt.Errorf("register %s: nil callback", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := scriptedTool{name: name, desc: description, schema: schema, callback: cb}
	for i := range s.tools {
		if s.tools[i].name == name {
			s.tools[i] = t
			s.install(t)
			return nil
		}
	}
	s.tools = append(s.tools, t)
	s.install(t)
	return nil
}

func (s *Session) install(t scriptedTool) {
	s.in.Registry().Register(t.name, t.desc, func(env *interp.Env, args []string) int {
		params, err := parseToolFlags(args, t.schema)
		if err != nil {
			env.Stdio.Errorf("%s: %v\n", t.name, err)
			if usage := schemaUsage(t.schema); usage != "" {
				env.Stdio.Errorf("usage: %s %s\n", t.name, usage)
			}
			return core.ExitUsage
		}
		ta := ToolArgs{Params: params}
		if env.Stdio.In != nil {
			if data, _ := io.ReadAll(env.Stdio.In); len(data) > 0 {
				in := string(data)
				ta.Stdin = &in
			}
		}
		out, err := t.callback(ta)
		if err != nil {
			env.Stdio.Errorf("%s: %v\n", t.name, err)
			return core.ExitFailure
		}
		env.Stdio.Print(out)
		return core.ExitSuccess
	})
}

func validCommandName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9', r == '-', r == '.':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
