package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsStandardDirs(t *testing.T) {
	fs := New()
	for _, dir := range []string{"/", "/tmp", "/home", "/home/user", "/etc"} {
		meta, err := fs.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, meta.IsDir(), dir)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/a.txt", []byte("hello")))

	data, err := fs.ReadFile("/tmp/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	meta, err := fs.Stat("/tmp/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
	assert.False(t, meta.IsDir())
}

func TestWriteTruncates(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/f", []byte("long content")))
	require.NoError(t, fs.WriteFile("/tmp/f", []byte("x")))

	data, err := fs.ReadFile("/tmp/f")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestAppendCreatesAndExtends(t *testing.T) {
	fs := New()
	require.NoError(t, fs.AppendFile("/tmp/log", []byte("one\n")))
	require.NoError(t, fs.AppendFile("/tmp/log", []byte("two\n")))

	data, err := fs.ReadFile("/tmp/log")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestWriteRequiresParent(t *testing.T) {
	fs := New()
	err := fs.WriteFile("/nope/f.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadErrors(t *testing.T) {
	fs := New()
	_, err := fs.ReadFile("/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.ReadFile("/tmp")
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestMkdirRecursive(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Mkdir("/data/nested/dir", true))
	assert.True(t, fs.Exists("/data/nested/dir"))

	// Non-recursive into a missing parent fails.
	assert.ErrorIs(t, fs.Mkdir("/a/b", false), ErrNotFound)
	// Existing dir without recursive fails, with recursive is fine.
	assert.ErrorIs(t, fs.Mkdir("/tmp", false), ErrExists)
	assert.NoError(t, fs.Mkdir("/tmp", true))
}

func TestRemove(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Mkdir("/d", false))
	require.NoError(t, fs.WriteFile("/d/f", []byte("x")))

	assert.ErrorIs(t, fs.Remove("/d", false), ErrDirNotEmpty)
	require.NoError(t, fs.Remove("/d", true))
	assert.False(t, fs.Exists("/d"))
	assert.ErrorIs(t, fs.Remove("/d", false), ErrNotFound)
}

func TestReadDirInsertionOrder(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/zebra", nil))
	require.NoError(t, fs.WriteFile("/tmp/apple", nil))
	require.NoError(t, fs.WriteFile("/tmp/mango", nil))

	entries, err := fs.ReadDir("/tmp")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"zebra", "apple", "mango"}, names)
}

func TestRename(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/old", []byte("content")))
	require.NoError(t, fs.Rename("/tmp/old", "/tmp/new"))

	assert.False(t, fs.Exists("/tmp/old"))
	data, err := fs.ReadFile("/tmp/new")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestRenameIntoOwnSubtree(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Mkdir("/tmp/a", false))
	require.NoError(t, fs.WriteFile("/tmp/a/keep.txt", []byte("keep")))

	err := fs.Rename("/tmp/a", "/tmp/a/b")
	require.ErrorIs(t, err, ErrIntoSelf)

	assert.True(t, fs.Exists("/tmp/a"))
	data, err := fs.ReadFile("/tmp/a/keep.txt")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	require.ErrorIs(t, fs.Rename("/tmp/a", "/tmp/a/b/c"), ErrIntoSelf)
}

func TestCopy(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/src", []byte("payload")))
	require.NoError(t, fs.Copy("/tmp/src", "/tmp/dst"))

	data, err := fs.ReadFile("/tmp/dst")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.True(t, fs.Exists("/tmp/src"))
}

func TestTouch(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Touch("/tmp/empty"))
	data, err := fs.ReadFile("/tmp/empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		cwd, in, want string
	}{
		{"/home/user", "file.txt", "/home/user/file.txt"},
		{"/home/user", "/abs/path", "/abs/path"},
		{"/home/user", "..", "/home"},
		{"/home/user", "../../..", "/"},
		{"/", "a//b/./c", "/a/b/c"},
		{"/tmp", "", "/tmp"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.cwd, tt.in), "%s + %s", tt.cwd, tt.in)
	}
}

func TestReadFileReturnsCopy(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/f", []byte("abc")))
	data, err := fs.ReadFile("/tmp/f")
	require.NoError(t, err)
	data[0] = 'X'

	again, err := fs.ReadFile("/tmp/f")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestGlob(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/file1.txt", nil))
	require.NoError(t, fs.WriteFile("/tmp/file2.txt", nil))
	require.NoError(t, fs.WriteFile("/tmp/other.log", nil))
	require.NoError(t, fs.WriteFile("/tmp/a10.txt", nil))

	assert.Equal(t, []string{"/tmp/file1.txt", "/tmp/file2.txt"}, fs.Glob("/", "/tmp/file?.txt"))
	assert.Equal(t, []string{"/tmp/file1.txt", "/tmp/file2.txt", "/tmp/a10.txt"}, fs.Glob("/", "/tmp/*.txt"))
	assert.Nil(t, fs.Glob("/", "/nonexistent/*.xyz"))

	// Relative patterns resolve from cwd and report relative paths.
	assert.Equal(t, []string{"other.log"}, fs.Glob("/tmp", "*.log"))
}

func TestGlobHidesDotfiles(t *testing.T) {
	fs := New()
	require.NoError(t, fs.WriteFile("/tmp/.hidden", nil))
	require.NoError(t, fs.WriteFile("/tmp/shown", nil))

	assert.Equal(t, []string{"/tmp/shown"}, fs.Glob("/", "/tmp/*"))
	assert.Equal(t, []string{"/tmp/.hidden"}, fs.Glob("/", "/tmp/.*"))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"*", "anything", true},
		{"*.txt", "a.txt", true},
		{"*.txt", "a.log", false},
		{"a?.txt", "a1.txt", true},
		{"a?.txt", "a10.txt", false},
		{"[abc]x", "bx", true},
		{"[abc]x", "dx", false},
		{"[a-z]1", "q1", true},
		{"[!a-z]1", "Q1", true},
		{"[!a-z]1", "q1", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.pattern, tt.name), "%q vs %q", tt.pattern, tt.name)
	}
}
