// Package testutil provides helpers for exercising builtins and
// sessions in tests.
package testutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
	"github.com/shellbox/shellbox/pkg/limits"
	"github.com/shellbox/shellbox/pkg/vfs"
)

// CaptureStdio builds a Stdio around buffers so tests can inspect
// output.
func CaptureStdio(input string) (*core.Stdio, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	stdio := &core.Stdio{
		In:  strings.NewReader(input),
		Out: out,
		Err: errBuf,
	}
	return stdio, out, errBuf
}

// FSWithFiles builds a filesystem pre-populated with the given files.
// Parent directories are created as needed.
func FSWithFiles(t *testing.T, files map[string]string) *vfs.FS {
	t.Helper()
	fs := vfs.New()
	for path, content := range files {
		dir := path[:strings.LastIndex(path, "/")]
		if dir != "" && !fs.Exists(dir) {
			if err := fs.Mkdir(dir, true); err != nil {
				t.Fatalf("mkdir %s: %v", dir, err)
			}
		}
		if err := fs.WriteFile(path, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return fs
}

// NewEnv builds a builtin execution environment over fs with captured
// streams. install registers the command set under test; it is a
// parameter to keep this package free of a builtins dependency.
func NewEnv(fs *vfs.FS, input string, install func(*interp.Registry)) (*interp.Env, *bytes.Buffer, *bytes.Buffer) {
	reg := interp.NewRegistry()
	if install != nil {
		install(reg)
	}
	in := interp.New(fs, reg, limits.Default())
	stdio, out, errBuf := CaptureStdio(input)
	return &interp.Env{Stdio: stdio, FS: fs, In: in}, out, errBuf
}

// BuiltinCase is one table-driven builtin invocation.
type BuiltinCase struct {
	Name       string
	Args       []string
	Input      string
	Files      map[string]string
	WantOut    string
	WantErr    string
	WantStatus int
}

// RunBuiltin runs a table of cases against fn.
func RunBuiltin(t *testing.T, fn func(*interp.Env, []string) int, install func(*interp.Registry), cases []BuiltinCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			fs := FSWithFiles(t, tc.Files)
			env, out, errBuf := NewEnv(fs, tc.Input, install)
			status := fn(env, tc.Args)
			if status != tc.WantStatus {
				t.Errorf("status = %d, want %d (stderr: %s)", status, tc.WantStatus, errBuf.String())
			}
			if out.String() != tc.WantOut {
				t.Errorf("stdout = %q, want %q", out.String(), tc.WantOut)
			}
			if tc.WantErr != "" && !strings.Contains(errBuf.String(), tc.WantErr) {
				t.Errorf("stderr = %q, want substring %q", errBuf.String(), tc.WantErr)
			}
		})
	}
}
