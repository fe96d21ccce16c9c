package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellbox/shellbox/pkg/testutil"
	"github.com/shellbox/shellbox/pkg/vfs"
)

func TestLsInsertionOrder(t *testing.T) {
	fs := vfs.New()
	require.NoError(t, fs.Mkdir("/data", false))
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, fs.WriteFile("/data/"+name, nil))
	}
	env, out, _ := testutil.NewEnv(fs, "", Install)
	require.Equal(t, 0, lsCmd(env, []string{"/data"}))
	assert.Equal(t, "zeta\nalpha\nmid\n", out.String())
}

func TestLs(t *testing.T) {
	testutil.RunBuiltin(t, lsCmd, Install, []testutil.BuiltinCase{
		{
			Name:    "hidden files skipped",
			Args:    []string{"/data"},
			Files:   map[string]string{"/data/.hidden": "", "/data/shown": ""},
			WantOut: "shown\n",
		},
		{
			Name:    "single file",
			Args:    []string{"/data/f.txt"},
			Files:   map[string]string{"/data/f.txt": "x"},
			WantOut: "/data/f.txt\n",
		},
		{
			Name:       "missing path",
			Args:       []string{"/nope"},
			WantErr:    "ls: /nope: No such file or directory\n",
			WantStatus: 1,
		},
	})
}

func TestFind(t *testing.T) {
	fs := vfs.New()
	require.NoError(t, fs.Mkdir("/proj", false))
	require.NoError(t, fs.WriteFile("/proj/main.go", nil))
	require.NoError(t, fs.Mkdir("/proj/doc", false))
	require.NoError(t, fs.WriteFile("/proj/doc/readme", nil))
	require.NoError(t, fs.WriteFile("/proj/doc/notes.go", nil))

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"all entries", []string{"/proj"},
			"/proj\n/proj/main.go\n/proj/doc\n/proj/doc/readme\n/proj/doc/notes.go\n"},
		{"name filter", []string{"/proj", "-name", "*.go"},
			"/proj/main.go\n/proj/doc/notes.go\n"},
		{"directories only", []string{"/proj", "-type", "d"},
			"/proj\n/proj/doc\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, out, _ := testutil.NewEnv(fs, "", Install)
			require.Equal(t, 0, findCmd(env, tc.args))
			assert.Equal(t, tc.want, out.String())
		})
	}

	env, _, errBuf := testutil.NewEnv(fs, "", Install)
	assert.Equal(t, 1, findCmd(env, []string{"/nope"}))
	assert.Contains(t, errBuf.String(), "find: /nope")
}

func TestMkdirRm(t *testing.T) {
	fs := vfs.New()
	env, _, errBuf := testutil.NewEnv(fs, "", Install)

	require.Equal(t, 0, mkdirCmd(env, []string{"-p", "/a/b/c"}))
	assert.True(t, fs.Exists("/a/b/c"))

	assert.Equal(t, 1, mkdirCmd(env, []string{"/x/y"}))
	assert.Contains(t, errBuf.String(), "mkdir")

	require.NoError(t, fs.WriteFile("/a/b/c/f.txt", []byte("x")))
	assert.Equal(t, 1, rmCmd(env, []string{"/a/b"}))
	assert.Equal(t, 0, rmCmd(env, []string{"-r", "/a/b"}))
	assert.False(t, fs.Exists("/a/b"))

	assert.Equal(t, 0, rmCmd(env, []string{"-f", "/gone"}))
	assert.Equal(t, 1, rmCmd(env, []string{"/gone"}))
}

func TestCpMv(t *testing.T) {
	fs := testutil.FSWithFiles(t, map[string]string{"/src/a.txt": "payload\n"})
	env, _, _ := testutil.NewEnv(fs, "", Install)

	require.Equal(t, 0, cpCmd(env, []string{"/src/a.txt", "/src/b.txt"}))
	data, err := fs.ReadFile("/src/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload\n", string(data))

	require.Equal(t, 0, mvCmd(env, []string{"/src/b.txt", "/src/c.txt"}))
	assert.False(t, fs.Exists("/src/b.txt"))
	assert.True(t, fs.Exists("/src/c.txt"))
}

func TestCpRecursive(t *testing.T) {
	fs := testutil.FSWithFiles(t, map[string]string{
		"/tree/one.txt":     "1",
		"/tree/sub/two.txt": "2",
	})
	env, _, _ := testutil.NewEnv(fs, "", Install)

	require.Equal(t, 0, cpCmd(env, []string{"-r", "/tree", "/copy"}))
	assert.True(t, fs.Exists("/copy/one.txt"))
	assert.True(t, fs.Exists("/copy/sub/two.txt"))
}

func TestTouchChmod(t *testing.T) {
	fs := vfs.New()
	env, _, _ := testutil.NewEnv(fs, "", Install)

	require.Equal(t, 0, touchCmd(env, []string{"/new.txt"}))
	assert.True(t, fs.Exists("/new.txt"))

	require.Equal(t, 0, chmodCmd(env, []string{"755", "/new.txt"}))
	meta, err := fs.Stat("/new.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(0o755), meta.Mode)
}

func TestLn(t *testing.T) {
	fs := testutil.FSWithFiles(t, map[string]string{"/src.txt": "data\n"})
	env, _, errBuf := testutil.NewEnv(fs, "", Install)

	require.Equal(t, 0, lnCmd(env, []string{"/src.txt", "/dst.txt"}))
	data, err := fs.ReadFile("/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "data\n", string(data))

	assert.Equal(t, 1, lnCmd(env, []string{"-s", "/src.txt", "/sym"}))
	assert.Contains(t, errBuf.String(), "symbolic links are not supported")
}

func TestBasenameDirname(t *testing.T) {
	testutil.RunBuiltin(t, basenameCmd, Install, []testutil.BuiltinCase{
		{Name: "plain", Args: []string{"/a/b/c.txt"}, WantOut: "c.txt\n"},
		{Name: "suffix strip", Args: []string{"/a/b/c.txt", ".txt"}, WantOut: "c\n"},
	})
	testutil.RunBuiltin(t, dirnameCmd, Install, []testutil.BuiltinCase{
		{Name: "plain", Args: []string{"/a/b/c.txt"}, WantOut: "/a/b\n"},
		{Name: "bare name", Args: []string{"file"}, WantOut: ".\n"},
	})
}
