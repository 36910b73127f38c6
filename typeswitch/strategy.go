package typeswitch

import (
	"reflect"
	"sync"

	"github.com/chazu/exotic/callsite"
)

// Strategy maps a concrete type to the index of the first case it matches.
type Strategy interface {
	// Index returns the case index for t, or NoMatch.
	Index(t reflect.Type) int

	// Target returns the dispatch target installed once the switch turns
	// megamorphic.
	Target() callsite.Target[reflect.Type, int]
}

// matches reports whether a value of concrete type t belongs to case c.
func matches(c, t reflect.Type) bool {
	if c == t {
		return true
	}
	return c.Kind() == reflect.Interface && t.Implements(c)
}

type scan struct {
	cases []reflect.Type
}

// NewScan returns a strategy that tests the cases front to back.
func NewScan(cases []reflect.Type) Strategy {
	return &scan{cases: cases}
}

func (s *scan) Index(t reflect.Type) int {
	for i, c := range s.cases {
		if matches(c, t) {
			return i
		}
	}
	return NoMatch
}

func (s *scan) Target() callsite.Target[reflect.Type, int] {
	return func(t reflect.Type) (int, error) {
		return s.Index(t), nil
	}
}

// memo resolves each concrete type once from the cases it is assignable to
// and keeps the result for the life of the switch.
type memo struct {
	interfaces []reflect.Type
	table      sync.Map // reflect.Type -> int
}

// NewMemo returns a strategy backed by a per-type memo table. The table is
// seeded with the cases at their declared index; any other type is resolved
// from the interface cases it implements, taking the lowest index.
func NewMemo(cases []reflect.Type) Strategy {
	m := &memo{}
	for i, c := range cases {
		m.table.Store(c, i)
		if c.Kind() == reflect.Interface {
			m.interfaces = append(m.interfaces, c)
		}
	}
	return m
}

func (m *memo) Index(t reflect.Type) int {
	if v, ok := m.table.Load(t); ok {
		return v.(int)
	}
	v, _ := m.table.LoadOrStore(t, m.fromSupertypes(t))
	return v.(int)
}

func (m *memo) fromSupertypes(t reflect.Type) int {
	index := NoMatch
	for _, iface := range m.interfaces {
		if !t.Implements(iface) {
			continue
		}
		local := m.Index(iface)
		if index == NoMatch || local < index {
			index = local
		}
	}
	return index
}

func (m *memo) Target() callsite.Target[reflect.Type, int] {
	return func(t reflect.Type) (int, error) {
		return m.Index(t), nil
	}
}

// Size returns the number of types resolved so far, seeds included.
func (m *memo) Size() int {
	n := 0
	m.table.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
