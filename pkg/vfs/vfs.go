// Package vfs implements the in-memory virtual filesystem backing a session.
// Every path a script touches resolves inside this tree; the host filesystem
// is never consulted.
package vfs

import (
	"errors"
	"path"
	"strings"
	"time"
)

// Common filesystem errors.
var (
	ErrNotFound    = errors.New("no such file or directory")
	ErrNotDir      = errors.New("not a directory")
	ErrIsDir       = errors.New("is a directory")
	ErrExists      = errors.New("file exists")
	ErrDirNotEmpty = errors.New("directory not empty")
	ErrIntoSelf    = errors.New("cannot move a directory to a subdirectory of itself")
	ErrInvalidPath = errors.New("invalid path")
)

// NodeType distinguishes files from directories.
type NodeType int

const (
	TypeFile NodeType = iota
	TypeDir
)

// Metadata describes a node.
type Metadata struct {
	Type     NodeType
	Size     int64
	Mode     uint32
	Created  time.Time
	Modified time.Time
}

// IsDir reports whether the node is a directory.
func (m Metadata) IsDir() bool { return m.Type == TypeDir }

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name string
	Meta Metadata
}

// node is either a file with content or a directory with ordered children.
// A node has exactly one parent; the tree is rooted at "/".
type node struct {
	meta     Metadata
	data     []byte
	children map[string]*node
	order    []string // child names in insertion order
}

func newDir(now time.Time) *node {
	return &node{
		meta:     Metadata{Type: TypeDir, Mode: 0o755, Created: now, Modified: now},
		children: map[string]*node{},
	}
}

func newFile(now time.Time, data []byte) *node {
	return &node{
		meta: Metadata{Type: TypeFile, Mode: 0o644, Size: int64(len(data)), Created: now, Modified: now},
		data: data,
	}
}

func (n *node) addChild(name string, child *node) {
	if _, ok := n.children[name]; !ok {
		n.order = append(n.order, name)
	}
	n.children[name] = child
}

func (n *node) removeChild(name string) {
	if _, ok := n.children[name]; !ok {
		return
	}
	delete(n.children, name)
	for i, c := range n.order {
		if c == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// FS is the virtual filesystem. It is owned by exactly one session and is
// not safe for concurrent use; the session serializes access.
type FS struct {
	root *node
}

// New creates a filesystem pre-seeded with the standard sandbox directories.
func New() *FS {
	now := time.Now()
	fs := &FS{root: newDir(now)}
	for _, dir := range []string{"/tmp", "/home", "/home/user", "/etc"} {
		_ = fs.Mkdir(dir, false)
	}
	return fs
}

// Normalize resolves a path to a clean absolute form relative to cwd.
// ".." above root stays at root; no symlinks exist so resolution is purely
// lexical.
func Normalize(cwd, p string) string {
	if p == "" {
		return cwd
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(cwd, p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == "" {
		return "/"
	}
	return cleaned
}

// split breaks an absolute, normalized path into components. "/" yields nil.
func split(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (fs *FS) lookup(p string) (*node, error) {
	cur := fs.root
	for _, part := range split(p) {
		if cur.meta.Type != TypeDir {
			return nil, ErrNotDir
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

// lookupParent returns the parent directory node and the final path component.
func (fs *FS) lookupParent(p string) (*node, string, error) {
	parts := split(p)
	if len(parts) == 0 {
		return nil, "", ErrInvalidPath
	}
	dir := "/" + strings.Join(parts[:len(parts)-1], "/")
	parent, err := fs.lookup(dir)
	if err != nil {
		return nil, "", err
	}
	if parent.meta.Type != TypeDir {
		return nil, "", ErrNotDir
	}
	return parent, parts[len(parts)-1], nil
}

// Exists reports whether a path resolves to a node.
func (fs *FS) Exists(p string) bool {
	_, err := fs.lookup(p)
	return err == nil
}

// Stat returns metadata for a path.
func (fs *FS) Stat(p string) (Metadata, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return Metadata{}, err
	}
	return n.meta, nil
}

// ReadFile returns a copy of a file's content.
func (fs *FS) ReadFile(p string) ([]byte, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.meta.Type == TypeDir {
		return nil, ErrIsDir
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

// WriteFile truncates or creates a file with the given content.
// The parent directory must exist.
func (fs *FS) WriteFile(p string, data []byte) error {
	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	now := time.Now()
	if existing, ok := parent.children[name]; ok {
		if existing.meta.Type == TypeDir {
			return ErrIsDir
		}
		existing.data = append(existing.data[:0], data...)
		existing.meta.Size = int64(len(data))
		existing.meta.Modified = now
		return nil
	}
	parent.addChild(name, newFile(now, append([]byte(nil), data...)))
	parent.meta.Modified = now
	return nil
}

// AppendFile appends to a file, creating it if absent.
func (fs *FS) AppendFile(p string, data []byte) error {
	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	now := time.Now()
	if existing, ok := parent.children[name]; ok {
		if existing.meta.Type == TypeDir {
			return ErrIsDir
		}
		existing.data = append(existing.data, data...)
		existing.meta.Size = int64(len(existing.data))
		existing.meta.Modified = now
		return nil
	}
	parent.addChild(name, newFile(now, append([]byte(nil), data...)))
	parent.meta.Modified = now
	return nil
}

// Mkdir creates a directory. With recursive set, missing parents are created
// and an existing directory is not an error.
func (fs *FS) Mkdir(p string, recursive bool) error {
	if recursive {
		cur := fs.root
		now := time.Now()
		for _, part := range split(p) {
			if cur.meta.Type != TypeDir {
				return ErrNotDir
			}
			next, ok := cur.children[part]
			if !ok {
				next = newDir(now)
				cur.addChild(part, next)
			}
			cur = next
		}
		if cur.meta.Type != TypeDir {
			return ErrExists
		}
		return nil
	}
	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return ErrExists
	}
	now := time.Now()
	parent.addChild(name, newDir(now))
	parent.meta.Modified = now
	return nil
}

// Remove deletes a file, or a directory when recursive is set. A non-empty
// directory without recursive fails with ErrDirNotEmpty.
func (fs *FS) Remove(p string, recursive bool) error {
	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	target, ok := parent.children[name]
	if !ok {
		return ErrNotFound
	}
	if target.meta.Type == TypeDir && !recursive && len(target.order) > 0 {
		return ErrDirNotEmpty
	}
	parent.removeChild(name)
	parent.meta.Modified = time.Now()
	return nil
}

// ReadDir lists a directory in insertion order. Scripts wanting sorted
// output pipe through the sort builtin.
func (fs *FS) ReadDir(p string) ([]DirEntry, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.meta.Type != TypeDir {
		return nil, ErrNotDir
	}
	entries := make([]DirEntry, 0, len(n.order))
	for _, name := range n.order {
		entries = append(entries, DirEntry{Name: name, Meta: n.children[name].meta})
	}
	return entries, nil
}

// Rename moves a node to a new path. The destination parent must exist;
// an existing destination is replaced. Moving a directory into its own
// subtree fails, else the detached node would become unreachable.
func (fs *FS) Rename(from, to string) error {
	src := Normalize("/", from)
	dst := Normalize("/", to)
	if strings.HasPrefix(dst, src+"/") {
		return ErrIntoSelf
	}
	srcParent, srcName, err := fs.lookupParent(from)
	if err != nil {
		return err
	}
	moved, ok := srcParent.children[srcName]
	if !ok {
		return ErrNotFound
	}
	dstParent, dstName, err := fs.lookupParent(to)
	if err != nil {
		return err
	}
	srcParent.removeChild(srcName)
	dstParent.removeChild(dstName)
	dstParent.addChild(dstName, moved)
	now := time.Now()
	srcParent.meta.Modified = now
	dstParent.meta.Modified = now
	return nil
}

// Copy duplicates a file. Directories are not copied (cp -r walks them).
func (fs *FS) Copy(from, to string) error {
	data, err := fs.ReadFile(from)
	if err != nil {
		return err
	}
	return fs.WriteFile(to, data)
}

// Chmod sets a node's permission bits.
func (fs *FS) Chmod(p string, mode uint32) error {
	n, err := fs.lookup(p)
	if err != nil {
		return err
	}
	n.meta.Mode = mode
	return nil
}

// Touch creates an empty file or updates the modification time.
func (fs *FS) Touch(p string) error {
	if n, err := fs.lookup(p); err == nil {
		n.meta.Modified = time.Now()
		return nil
	}
	return fs.WriteFile(p, nil)
}
