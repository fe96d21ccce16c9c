package vfs

import (
	"path"
	"strings"
)

// Glob expands a shell pattern against the tree. Relative patterns resolve
// from cwd. Matches come back in directory insertion order; an empty slice
// means no match (the caller decides whether the literal pattern survives).
func (fs *FS) Glob(cwd, pattern string) []string {
	absolute := strings.HasPrefix(pattern, "/")
	base := cwd
	if absolute {
		base = "/"
		pattern = strings.TrimPrefix(pattern, "/")
	}
	segments := strings.Split(pattern, "/")

	current := []string{base}
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		var next []string
		for _, dir := range current {
			if !hasMeta(seg) {
				candidate := path.Join(dir, seg)
				if fs.Exists(candidate) {
					next = append(next, candidate)
				}
				continue
			}
			entries, err := fs.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				// Dotfiles require an explicit leading dot in the pattern.
				if strings.HasPrefix(e.Name, ".") && !strings.HasPrefix(seg, ".") {
					continue
				}
				if Match(seg, e.Name) {
					next = append(next, path.Join(dir, e.Name))
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	if !absolute {
		// Report matches the way the pattern was written.
		for i, m := range current {
			if rel, ok := strings.CutPrefix(m, cwd+"/"); ok {
				current[i] = rel
			}
		}
	}
	return current
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// Match reports whether a single path component matches a shell pattern
// with *, ? and [...] classes. It never crosses a path separator.
func Match(pattern, name string) bool {
	return matchHere(pattern, name)
}

func matchHere(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			p = p[1:]
			if p == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchHere(p, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if s == "" {
				return false
			}
			p, s = p[1:], s[1:]
		case '[':
			if s == "" {
				return false
			}
			rest, ok := matchClass(p, s[0])
			if !ok {
				return false
			}
			p, s = rest, s[1:]
		default:
			if s == "" || p[0] != s[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return s == ""
}

// matchClass matches one character against a [...] class, returning the
// remainder of the pattern after the closing bracket.
func matchClass(p string, c byte) (string, bool) {
	// p starts with '['
	i := 1
	negate := false
	if i < len(p) && (p[i] == '!' || p[i] == '^') {
		negate = true
		i++
	}
	matched := false
	first := true
	for i < len(p) && (p[i] != ']' || first) {
		first = false
		if i+2 < len(p) && p[i+1] == '-' && p[i+2] != ']' {
			if p[i] <= c && c <= p[i+2] {
				matched = true
			}
			i += 3
			continue
		}
		if p[i] == c {
			matched = true
		}
		i++
	}
	if i >= len(p) {
		// Unterminated class: treat '[' literally.
		return p[1:], c == '['
	}
	return p[i+1:], matched != negate
}
