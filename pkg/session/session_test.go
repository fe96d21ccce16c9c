package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellbox/shellbox/pkg/limits"
	"github.com/shellbox/shellbox/pkg/vfs"
)

func TestExecuteDeterministic(t *testing.T) {
	script := "for i in 1 2 3; do echo line $i; done"
	a := New().Execute(script)
	b := New().Execute(script)
	require.True(t, a.Success())
	assert.Equal(t, a.Stdout, b.Stdout)
	assert.Equal(t, a.ExitCode, b.ExitCode)
	assert.Equal(t, "line 1\nline 2\nline 3\n", a.Stdout)
}

func TestStatePersistsAcrossExecutes(t *testing.T) {
	s := New()
	res := s.Execute("export FOO=bar")
	require.True(t, res.Success())

	res = s.Execute("echo $FOO")
	assert.Equal(t, "bar\n", res.Stdout)

	s.Reset()
	res = s.Execute("echo $FOO")
	assert.Equal(t, "\n", res.Stdout)
}

func TestFilePersistsAcrossExecutes(t *testing.T) {
	s := New()
	res := s.Execute("echo content > /tmp/t.txt")
	require.True(t, res.Success())

	res = s.Execute("cat /tmp/t.txt")
	assert.Equal(t, "content\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestUnknownCommand(t *testing.T) {
	res := New().Execute("nope_xyz")
	assert.Equal(t, 127, res.ExitCode)
	assert.Contains(t, res.Stderr, "command not found")
	assert.Empty(t, res.Error)
}

func TestParseError(t *testing.T) {
	res := New().Execute(`echo "unclosed`)
	assert.NotZero(t, res.ExitCode)
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, res.Stderr, "syntax error")
}

func TestLoopLimitAborts(t *testing.T) {
	s := NewBuilder().
		Limits(limits.Default().WithMaxLoopIterations(10)).
		Build()
	res := s.Execute("while true; do i=$((i+1)); done")
	assert.True(t, res.ExitCode != 0 || res.Error != "")
	assert.Contains(t, res.Error, "loop")
}

func TestLimitAbortPreservesPartialOutput(t *testing.T) {
	s := NewBuilder().
		Limits(limits.Default().WithMaxLoopIterations(3)).
		Build()
	res := s.Execute("while true; do echo tick; done")
	assert.Equal(t, "tick\ntick\ntick\n", res.Stdout)
	assert.NotEmpty(t, res.Error)
}

func TestRegisteredToolRoundTrip(t *testing.T) {
	s := New()
	schema := map[string]any{
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}
	err := s.RegisterCommand("greet", "Greet a user", schema, func(args ToolArgs) (string, error) {
		name, _ := args.Params["name"].(string)
		return "hello " + name + "\n", nil
	})
	require.NoError(t, err)

	res := s.Execute("greet --name Alice")
	assert.Equal(t, "hello Alice\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRegisteredToolPipeline(t *testing.T) {
	s := New()
	err := s.RegisterCommand("get_user", "Fetch the user record", nil, func(ToolArgs) (string, error) {
		return `{"id":1,"name":"Alice"}` + "\n", nil
	})
	require.NoError(t, err)

	res := s.Execute("get_user | jq -r '.name'")
	assert.Equal(t, "Alice\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRegisteredToolReceivesStdin(t *testing.T) {
	s := New()
	var got *string
	err := s.RegisterCommand("sink", "Capture stdin", nil, func(args ToolArgs) (string, error) {
		got = args.Stdin
		return "", nil
	})
	require.NoError(t, err)

	res := s.Execute("echo payload | sink")
	require.True(t, res.Success())
	require.NotNil(t, got)
	assert.Equal(t, "payload\n", *got)

	res = s.Execute("sink")
	require.True(t, res.Success())
	assert.Nil(t, got)
}

func TestCallbackFailure(t *testing.T) {
	s := New()
	err := s.RegisterCommand("failing_cmd", "Always fails", nil, func(ToolArgs) (string, error) {
		return "", errors.New("backend unavailable")
	})
	require.NoError(t, err)

	res := s.Execute("failing_cmd")
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "backend unavailable")
	assert.Empty(t, res.Error)

	res = s.Execute("failing_cmd || echo fallback")
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "fallback\n", res.Stdout)
}

func TestFlagCoercion(t *testing.T) {
	s := New()
	schema := map[string]any{
		"properties": map[string]any{
			"id":      map[string]any{"type": "integer"},
			"score":   map[string]any{"type": "number"},
			"verbose": map[string]any{"type": "boolean"},
			"query":   map[string]any{"type": "string"},
		},
	}
	var got map[string]any
	err := s.RegisterCommand("lookup", "Look up a record", schema, func(args ToolArgs) (string, error) {
		got = args.Params
		return "", nil
	})
	require.NoError(t, err)

	res := s.Execute("lookup --id 42 --score=1.5 --verbose --query hello")
	require.True(t, res.Success(), res.Stderr)
	assert.Equal(t, int64(42), got["id"])
	assert.Equal(t, 1.5, got["score"])
	assert.Equal(t, true, got["verbose"])
	assert.Equal(t, "hello", got["query"])
}

func TestMistypedFlagValueRejected(t *testing.T) {
	s := New()
	schema := map[string]any{
		"properties": map[string]any{
			"id": map[string]any{"type": "integer"},
		},
	}
	called := false
	err := s.RegisterCommand("lookup", "Look up a record", schema, func(ToolArgs) (string, error) {
		called = true
		return "", nil
	})
	require.NoError(t, err)

	res := s.Execute("lookup --id notanumber")
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "invalid integer")
	assert.False(t, called)
}

func TestPositionalArgsRejected(t *testing.T) {
	s := New()
	err := s.RegisterCommand("strict", "No positionals", nil, func(ToolArgs) (string, error) {
		return "", nil
	})
	require.NoError(t, err)

	res := s.Execute("strict bare")
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "expected --flag")
}

func TestRegisterCommandValidation(t *testing.T) {
	s := New()
	cb := func(ToolArgs) (string, error) { return "", nil }
	assert.Error(t, s.RegisterCommand("", "empty", nil, cb))
	assert.Error(t, s.RegisterCommand("has space", "bad", nil, cb))
	assert.Error(t, s.RegisterCommand("1st", "bad", nil, cb))
	assert.Error(t, s.RegisterCommand("ok", "nil callback", nil, nil))
	assert.NoError(t, s.RegisterCommand("get_user.v2", "ok", nil, cb))
}

func TestReregistrationOverwrites(t *testing.T) {
	s := New()
	cb := func(out string) Callback {
		return func(ToolArgs) (string, error) { return out + "\n", nil }
	}
	require.NoError(t, s.RegisterCommand("fetch", "v1", nil, cb("one")))
	before := s.CommandCount()
	require.NoError(t, s.RegisterCommand("fetch", "v2", nil, cb("two")))
	assert.Equal(t, before, s.CommandCount())

	res := s.Execute("fetch")
	assert.Equal(t, "two\n", res.Stdout)
}

func TestResetKeepsRegisteredCommands(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterCommand("greet", "Greet", nil, func(ToolArgs) (string, error) {
		return "hi\n", nil
	}))
	s.Execute("echo x > /tmp/x.txt")
	s.Reset()

	res := s.Execute("greet")
	assert.Equal(t, "hi\n", res.Stdout)

	res = s.Execute("cat /tmp/x.txt")
	assert.NotZero(t, res.ExitCode)
}

func TestFSPrePopulation(t *testing.T) {
	fs := vfs.New()
	require.NoError(t, fs.Mkdir("/data", true))
	require.NoError(t, fs.WriteFile("/data/in.txt", []byte("seeded\n")))

	s := NewBuilder().FS(fs).Build()
	res := s.Execute("cat /data/in.txt")
	assert.Equal(t, "seeded\n", res.Stdout)
}

func TestIdentityAndEnv(t *testing.T) {
	s := NewBuilder().
		Username("alice").
		Hostname("buildbox").
		Env("REGION", "eu-west-1").
		Build()

	res := s.Execute("whoami; hostname; echo $HOME; echo $REGION; pwd")
	assert.Equal(t, "alice\nbuildbox\n/home/alice\neu-west-1\n/home/alice\n", res.Stdout)
}

func TestCwdOption(t *testing.T) {
	s := NewBuilder().Cwd("/work").Build()
	res := s.Execute("pwd")
	assert.Equal(t, "/work\n", res.Stdout)
}

func TestExecuteContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New().ExecuteContext(ctx, "echo never")
	assert.NotEmpty(t, res.Error)
	assert.NotZero(t, res.ExitCode)
	assert.Empty(t, res.Stdout)
}

func TestSessionID(t *testing.T) {
	s := New()
	require.NotEmpty(t, s.ID())
	res := s.Execute("echo hi")
	assert.Equal(t, s.ID(), res.SessionID)
	assert.NotEqual(t, s.ID(), New().ID())
}

func TestDescription(t *testing.T) {
	s := New()
	assert.Equal(t, toolDescription, s.Description())

	cb := func(ToolArgs) (string, error) { return "", nil }
	require.NoError(t, s.RegisterCommand("get_user", "Fetch user", nil, cb))
	require.NoError(t, s.RegisterCommand("put_user", "Store user", nil, cb))
	assert.Equal(t, toolDescription+" Custom commands: get_user, put_user.", s.Description())
}

func TestHelp(t *testing.T) {
	s := NewBuilder().Username("alice").Build()
	require.NoError(t, s.RegisterCommand("greet", "Greet a user", nil, func(ToolArgs) (string, error) {
		return "", nil
	}))

	help := s.Help()
	assert.Contains(t, help, "## Capabilities")
	assert.Contains(t, help, "## Current Configuration")
	assert.Contains(t, help, "`greet`: Greet a user")
	assert.Contains(t, help, "Username: `alice`")
}

func TestHelpDefaultOmitsConfiguration(t *testing.T) {
	assert.NotContains(t, New().Help(), "Current Configuration")
}

func TestSystemPrompt(t *testing.T) {
	s := New()
	schema := map[string]any{
		"properties": map[string]any{
			"id": map[string]any{"type": "integer"},
		},
	}
	require.NoError(t, s.RegisterCommand("get_user", "Fetch user by id", schema, func(ToolArgs) (string, error) {
		return "", nil
	}))

	prompt := s.SystemPrompt()
	assert.Contains(t, prompt, "`get_user`: Fetch user by id")
	assert.Contains(t, prompt, "Usage: `get_user --id <integer>`")
	assert.Contains(t, prompt, "jq")
	assert.True(t, strings.HasPrefix(prompt, "# Shellbox"))
}

func TestSchemas(t *testing.T) {
	s := New()
	in := s.InputSchema()
	props, ok := in["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "script")
	assert.Contains(t, props, "timeout_ms")

	out := s.OutputSchema()
	props, ok = out["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "stdout")
	assert.Contains(t, props, "exit_code")
}

func TestParseToolFlags(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"id":      map[string]any{"type": "integer"},
			"verbose": map[string]any{"type": "boolean"},
		},
	}

	params, err := parseToolFlags([]string{"--id", "42", "--verbose", "--name", "Bob"}, schema)
	require.NoError(t, err)
	assert.Equal(t, int64(42), params["id"])
	assert.Equal(t, true, params["verbose"])
	assert.Equal(t, "Bob", params["name"])

	_, err = parseToolFlags([]string{"--id=notanumber"}, schema)
	require.ErrorContains(t, err, "invalid integer")

	_, err = parseToolFlags([]string{"--verbose=maybe"}, schema)
	require.ErrorContains(t, err, "invalid boolean")

	params, err = parseToolFlags([]string{"--last"}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, params["last"])

	_, err = parseToolFlags([]string{"positional"}, nil)
	assert.Error(t, err)
}
