package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shellbox/shellbox/pkg/testutil"
)

func TestGrep(t *testing.T) {
	input := "apple\nbanana\ncherry\n"
	testutil.RunBuiltin(t, grepCmd, Install, []testutil.BuiltinCase{
		{Name: "basic", Args: []string{"an"}, Input: input, WantOut: "banana\n"},
		{Name: "no match", Args: []string{"zzz"}, Input: input, WantStatus: 1},
		{Name: "ignore case", Args: []string{"-i", "APPLE"}, Input: input, WantOut: "apple\n"},
		{Name: "invert", Args: []string{"-v", "an"}, Input: input, WantOut: "apple\ncherry\n"},
		{Name: "line numbers", Args: []string{"-n", "ch"}, Input: input, WantOut: "3:cherry\n"},
		{Name: "count", Args: []string{"-c", "a"}, Input: input, WantOut: "2\n"},
		{Name: "quiet", Args: []string{"-q", "apple"}, Input: input},
		{Name: "fixed string", Args: []string{"-F", "a.p"}, Input: "a.p\naxp\n", WantOut: "a.p\n"},
		{Name: "word match", Args: []string{"-w", "cat"}, Input: "cat\nconcat\n", WantOut: "cat\n"},
		{
			Name:    "file with name prefix",
			Args:    []string{"b", "/x.txt", "/y.txt"},
			Files:   map[string]string{"/x.txt": "abc\n", "/y.txt": "def\n"},
			WantOut: "/x.txt:abc\n",
		},
		{
			Name:    "recursive",
			Args:    []string{"-r", "hit", "/dir"},
			Files:   map[string]string{"/dir/only.txt": "a hit here\n"},
			WantOut: "/dir/only.txt:a hit here\n",
		},
	})
}

func TestSed(t *testing.T) {
	testutil.RunBuiltin(t, sedCmd, Install, []testutil.BuiltinCase{
		{Name: "substitute first", Args: []string{"s/a/b/"}, Input: "aaa\n", WantOut: "baa\n"},
		{Name: "substitute global", Args: []string{"s/a/b/g"}, Input: "aaa\n", WantOut: "bbb\n"},
		{Name: "alternate delimiter", Args: []string{"s|/usr|/opt|"}, Input: "/usr/bin\n", WantOut: "/opt/bin\n"},
		{Name: "backreference", Args: []string{`s/\(b\)/[\1]/`}, Input: "abc\n", WantOut: "a[b]c\n"},
		{Name: "ampersand", Args: []string{"s/b/<&>/"}, Input: "abc\n", WantOut: "a<b>c\n"},
		{Name: "delete line", Args: []string{"2d"}, Input: "1\n2\n3\n", WantOut: "1\n3\n"},
		{Name: "delete by pattern", Args: []string{"/^2/d"}, Input: "1\n2\n3\n", WantOut: "1\n3\n"},
		{Name: "print range", Args: []string{"-n", "2,3p"}, Input: "a\nb\nc\nd\n", WantOut: "b\nc\n"},
		{Name: "last line", Args: []string{"-n", "$p"}, Input: "a\nb\n", WantOut: "b\n"},
		{Name: "address on substitute", Args: []string{"1s/x/y/"}, Input: "x\nx\n", WantOut: "y\nx\n"},
		{Name: "multiple expressions", Args: []string{"-e", "s/a/1/", "-e", "s/b/2/"}, Input: "ab\n", WantOut: "12\n"},
	})
}

func TestSedInPlace(t *testing.T) {
	fs := testutil.FSWithFiles(t, map[string]string{"/f.txt": "old\n"})
	env, out, _ := testutil.NewEnv(fs, "", Install)
	assert.Equal(t, 0, sedCmd(env, []string{"-i", "s/old/new/", "/f.txt"}))
	assert.Empty(t, out.String())
	data, err := fs.ReadFile("/f.txt")
	assert.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestAwk(t *testing.T) {
	testutil.RunBuiltin(t, awkCmd, Install, []testutil.BuiltinCase{
		{Name: "print field", Args: []string{"{print $1}"}, Input: "a b\nc d\n", WantOut: "a\nc\n"},
		{Name: "field separator", Args: []string{"-F", ":", "{print $2}"}, Input: "x:y\n", WantOut: "y\n"},
		{Name: "sum column", Args: []string{"{s += $1} END {print s}"}, Input: "1\n2\n3\n", WantOut: "6\n"},
		{Name: "pattern filter", Args: []string{"/b/ {print}"}, Input: "ab\ncd\n", WantOut: "ab\n"},
		{Name: "assigned variable", Args: []string{"-v", "k=2", "{print $k}"}, Input: "a b c\n", WantOut: "b\n"},
		{
			Name:    "named file",
			Args:    []string{"{print NR, $0}", "/in.txt"},
			Files:   map[string]string{"/in.txt": "x\ny\n"},
			WantOut: "1 x\n2 y\n",
		},
	})
}

func TestJq(t *testing.T) {
	testutil.RunBuiltin(t, jqCmd, Install, []testutil.BuiltinCase{
		{Name: "identity", Args: []string{"."}, Input: `{"a":1}`, WantOut: "{\n  \"a\": 1\n}\n"},
		{Name: "field", Args: []string{".name"}, Input: `{"name":"x"}`, WantOut: "\"x\"\n"},
		{Name: "raw output", Args: []string{"-r", ".name"}, Input: `{"name":"x"}`, WantOut: "x\n"},
		{Name: "compact", Args: []string{"-c", "."}, Input: "{\"a\": [1, 2]}", WantOut: `{"a":[1,2]}` + "\n"},
		{Name: "array index", Args: []string{".[1]"}, Input: `[10,20,30]`, WantOut: "20\n"},
		{Name: "map", Args: []string{"-c", "map(.+1)"}, Input: `[1,2]`, WantOut: "[2,3]\n"},
		{Name: "stream of documents", Args: []string{"-c", ".v"}, Input: `{"v":1}{"v":2}`, WantOut: "1\n2\n"},
		{Name: "bad filter", Args: []string{"]["}, WantStatus: 2, WantErr: "jq: "},
		{Name: "bad json", Args: []string{"."}, Input: "{", WantStatus: 2, WantErr: "jq: "},
	})
}

func TestTestCommand(t *testing.T) {
	files := map[string]string{"/present.txt": "data"}
	cases := []testutil.BuiltinCase{
		{Name: "string equal", Args: []string{"abc", "=", "abc"}},
		{Name: "string unequal", Args: []string{"abc", "!=", "abc"}, WantStatus: 1},
		{Name: "numeric less", Args: []string{"1", "-lt", "2"}},
		{Name: "numeric ge fails", Args: []string{"1", "-ge", "2"}, WantStatus: 1},
		{Name: "nonempty", Args: []string{"-n", "x"}},
		{Name: "empty", Args: []string{"-z", ""}},
		{Name: "file exists", Args: []string{"-e", "/present.txt"}, Files: files},
		{Name: "regular file", Args: []string{"-f", "/present.txt"}, Files: files},
		{Name: "not a directory", Args: []string{"-d", "/present.txt"}, Files: files, WantStatus: 1},
		{Name: "nonempty file", Args: []string{"-s", "/present.txt"}, Files: files},
		{Name: "missing file", Args: []string{"-e", "/absent"}, WantStatus: 1},
		{Name: "negation", Args: []string{"!", "-e", "/absent"}},
		{Name: "and", Args: []string{"1", "-lt", "2", "-a", "a", "=", "a"}},
		{Name: "or", Args: []string{"1", "-gt", "2", "-o", "a", "=", "a"}},
		{Name: "lone operand", Args: []string{"x"}},
		{Name: "lone empty operand", Args: []string{""}, WantStatus: 1},
	}
	testutil.RunBuiltin(t, testCmd, Install, cases)
}

func TestBracketRequiresClose(t *testing.T) {
	testutil.RunBuiltin(t, bracketCmd, Install, []testutil.BuiltinCase{
		{Name: "with bracket", Args: []string{"a", "=", "a", "]"}},
		{Name: "missing bracket", Args: []string{"a", "=", "a"}, WantStatus: 2, WantErr: "["},
	})
}

func TestIdentityCommands(t *testing.T) {
	testutil.RunBuiltin(t, whoamiCmd, Install, []testutil.BuiltinCase{
		{Name: "default", WantOut: "user\n"},
	})
	testutil.RunBuiltin(t, hostnameCmd, Install, []testutil.BuiltinCase{
		{Name: "default", WantOut: "sandbox\n"},
	})
	testutil.RunBuiltin(t, unameCmd, Install, []testutil.BuiltinCase{
		{Name: "default", WantOut: "Linux\n"},
	})
}

func TestNetworkStubs(t *testing.T) {
	testutil.RunBuiltin(t, curlCmd, Install, []testutil.BuiltinCase{
		{
			Name:       "offline",
			Args:       []string{"https://example.com/api"},
			WantErr:    "curl: (6) Could not resolve host: example.com\n",
			WantStatus: 6,
		},
		{
			Name:    "mounted response",
			Args:    []string{"https://api.test/v1"},
			Files:   map[string]string{"/etc/netstub/api.test": `{"ok":true}`},
			WantOut: `{"ok":true}`,
		},
	})
	testutil.RunBuiltin(t, wgetCmd, Install, []testutil.BuiltinCase{
		{
			Name:       "offline",
			Args:       []string{"https://example.com/file"},
			WantStatus: 1,
		},
	})
}

func TestWgetMountedResponse(t *testing.T) {
	fs := testutil.FSWithFiles(t, map[string]string{"/etc/netstub/files.test": "blob\n"})
	env, _, _ := testutil.NewEnv(fs, "", Install)
	assert.Equal(t, 0, wgetCmd(env, []string{"-O", "/tmp/out", "https://files.test/data"}))
	data, err := fs.ReadFile("/tmp/out")
	assert.NoError(t, err)
	assert.Equal(t, "blob\n", string(data))
}

func TestSleepValidates(t *testing.T) {
	testutil.RunBuiltin(t, sleepCmd, Install, []testutil.BuiltinCase{
		{Name: "numeric ok", Args: []string{"2"}},
		{Name: "suffix ok", Args: []string{"0.5"}},
		{Name: "garbage", Args: []string{"soon"}, WantStatus: 2, WantErr: "sleep"},
	})
}
