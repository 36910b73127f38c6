package structural

import (
	"fmt"
	"reflect"
)

// Lookup decides which declaring types a structural call may dispatch
// through. A method declared on a type the lookup does not allow is still
// reachable if an allowed embedded field or interface also declares it.
type Lookup struct {
	allow      func(pkgPath string) bool
	interfaces []reflect.Type
}

// PublicLookup allows every declaring package.
func PublicLookup() Lookup {
	return Lookup{allow: func(string) bool { return true }}
}

// PackageLookup allows only types declared in the given packages, plus
// predeclared and unnamed types.
func PackageLookup(pkgPaths ...string) Lookup {
	allowed := make(map[string]bool, len(pkgPaths))
	for _, p := range pkgPaths {
		allowed[p] = true
	}
	return Lookup{allow: func(pkgPath string) bool {
		return pkgPath == "" || allowed[pkgPath]
	}}
}

// WithInterfaces returns a copy of l that also walks the given interface
// types when looking for an allowed declaration.
func (l Lookup) WithInterfaces(ifaces ...reflect.Type) Lookup {
	l.interfaces = append(append([]reflect.Type(nil), l.interfaces...), ifaces...)
	return l
}

func (l Lookup) allows(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	return l.allow(t.PkgPath())
}

// candidate is one node of the supertype walk: the type whose method set is
// inspected, the static type of the value it is reached through, and the
// embedded-field path leading to that value. addr is set when the field at
// the end of path is addressable and is called through its address.
type candidate struct {
	view  reflect.Type
	value reflect.Type
	path  []int
	addr  bool
}

// target is a resolved method: where to find the value to call it on and
// the method's index in that value's method set.
type target struct {
	declaredOn reflect.Type
	path       []int
	addr       bool
	index      int
}

func (l Lookup) find(recv reflect.Type, name string, sig reflect.Type) (*target, error) {
	queue := []candidate{{view: recv, value: recv}}
	visited := make(map[reflect.Type]bool)
	var denied reflect.Type

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if visited[c.view] {
			continue
		}
		visited[c.view] = true

		if !hasMethod(c.view, name, sig) {
			if denied == nil {
				return nil, fmt.Errorf("%s %v on %v: %w", name, sig, recv, ErrNotFound)
			}
			continue
		}
		if l.allows(c.view) {
			m, _ := c.value.MethodByName(name)
			return &target{declaredOn: c.view, path: c.path, addr: c.addr, index: m.Index}, nil
		}
		if denied == nil {
			denied = c.view
		}
		queue = append(queue, l.supertypes(c)...)
	}
	return nil, fmt.Errorf("%s %v on %v (declared by %v): %w", name, sig, recv, denied, ErrInaccessible)
}

// supertypes lists the exported embedded fields of c's value and the
// lookup's interfaces that the value implements. Fields reached through a
// pointer are addressable, so an embedded struct held by value there is
// viewed through its pointer type and its pointer-receiver methods count.
func (l Lookup) supertypes(c candidate) []candidate {
	var out []candidate
	st := c.value
	addressable := false
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
		addressable = true
	}
	if st.Kind() == reflect.Struct {
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if !f.Anonymous || !f.IsExported() {
				continue
			}
			path := append(append([]int(nil), c.path...), i)
			t, addr := f.Type, false
			if addressable && t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
				t, addr = reflect.PointerTo(t), true
			}
			out = append(out, candidate{view: t, value: t, path: path, addr: addr})
		}
	}
	for _, iface := range l.interfaces {
		if iface != c.view && c.value.Implements(iface) {
			out = append(out, candidate{view: iface, value: c.value, path: c.path, addr: c.addr})
		}
	}
	return out
}

// hasMethod reports whether t declares an exported method called name
// whose signature, receiver excluded, is exactly sig.
func hasMethod(t reflect.Type, name string, sig reflect.Type) bool {
	m, ok := t.MethodByName(name)
	if !ok {
		return false
	}
	mt := m.Type
	skip := 0
	if t.Kind() != reflect.Interface {
		skip = 1
	}
	if mt.NumIn()-skip != sig.NumIn() || mt.NumOut() != sig.NumOut() || mt.IsVariadic() != sig.IsVariadic() {
		return false
	}
	for i := 0; i < sig.NumIn(); i++ {
		if mt.In(i+skip) != sig.In(i) {
			return false
		}
	}
	for i := 0; i < sig.NumOut(); i++ {
		if mt.Out(i) != sig.Out(i) {
			return false
		}
	}
	return true
}
