package interp

import "sort"

// variable is one shell variable: a scalar or an indexed array.
type variable struct {
	value    string
	arr      []string
	isArray  bool
	exported bool
}

func (v *variable) str() string {
	if v == nil {
		return ""
	}
	if v.isArray {
		if len(v.arr) == 0 {
			return ""
		}
		return v.arr[0]
	}
	return v.value
}

func (v *variable) elems() []string {
	if v == nil {
		return nil
	}
	if v.isArray {
		return v.arr
	}
	if v.value == "" {
		return nil
	}
	return []string{v.value}
}

func (v *variable) clone() *variable {
	c := *v
	c.arr = append([]string(nil), v.arr...)
	return &c
}

// scope is one frame of the dynamic scope chain. Plain assignment
// walks the chain and falls through to the root; local declarations
// bind in the current frame.
type scope struct {
	vars   map[string]*variable
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*variable), parent: parent}
}

func (s *scope) get(name string) *variable {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v
		}
	}
	return nil
}

// set assigns through the chain: an existing binding is updated in
// place, otherwise the variable lands in the root scope.
func (s *scope) set(name, value string) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			v.value = value
			v.isArray = false
			v.arr = nil
			return
		}
	}
	s.root().vars[name] = &variable{value: value}
}

func (s *scope) setArray(name string, elems []string) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			v.isArray = true
			v.arr = elems
			v.value = ""
			return
		}
	}
	s.root().vars[name] = &variable{isArray: true, arr: elems}
}

// setIndex assigns one array element, extending the array with empty
// strings when the index is past the end. A scalar target is promoted
// to an array holding its value at index zero.
func (s *scope) setIndex(name string, idx int, value string) {
	v := s.get(name)
	if v == nil {
		v = &variable{isArray: true}
		s.root().vars[name] = v
	}
	if !v.isArray {
		if v.value != "" {
			v.arr = []string{v.value}
		}
		v.isArray = true
		v.value = ""
	}
	for len(v.arr) <= idx {
		v.arr = append(v.arr, "")
	}
	v.arr[idx] = value
}

// setLocal binds in the current frame, shadowing outer bindings.
func (s *scope) setLocal(name, value string) {
	s.vars[name] = &variable{value: value}
}

func (s *scope) unset(name string) {
	for f := s; f != nil; f = f.parent {
		if _, ok := f.vars[name]; ok {
			delete(f.vars, name)
			return
		}
	}
}

func (s *scope) export(name string) {
	if v := s.get(name); v != nil {
		v.exported = true
		return
	}
	s.root().vars[name] = &variable{exported: true}
}

func (s *scope) root() *scope {
	f := s
	for f.parent != nil {
		f = f.parent
	}
	return f
}

// clone deep-copies the whole chain into a single flattened root
// scope. Used for subshell isolation.
func (s *scope) clone() *scope {
	c := newScope(nil)
	var frames []*scope
	for f := s; f != nil; f = f.parent {
		frames = append(frames, f)
	}
	// Outermost first so inner bindings win.
	for i := len(frames) - 1; i >= 0; i-- {
		for name, v := range frames[i].vars {
			c.vars[name] = v.clone()
		}
	}
	return c
}

// names returns all visible variable names, sorted, innermost binding
// winning.
func (s *scope) names() []string {
	seen := make(map[string]bool)
	for f := s; f != nil; f = f.parent {
		for name := range f.vars {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
