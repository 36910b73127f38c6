// Package objsupport derives equality and hashing for a struct type from a
// chosen list of its fields.
//
//	var personSupport = objsupport.MustOf[Person]("Name", "Age")
//
//	func (p *Person) Equal(other any) bool { return personSupport.Equal(p, other) }
//	func (p *Person) Hash() uint64        { return personSupport.Hash(p) }
//
// Fields are compared by value. Pointers, channels and funcs compare by
// identity, and slices and maps element by element.
package objsupport

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/chazu/exotic/projection"
)

var (
	ErrNotStruct   = errors.New("objsupport: not a struct type")
	ErrNoSuchField = errors.New("objsupport: no such field")
	ErrConfig      = errors.New("objsupport: invalid configuration")
)

// Support compares and hashes values of T by a fixed list of fields.
type Support[T any] struct {
	fields []field
}

type field struct {
	name  string
	index []int
}

// Of builds a Support over the named fields of T, in order. Unexported and
// promoted fields are allowed.
func Of[T any](names ...string) (*Support[T], error) {
	st := reflect.TypeFor[T]()
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v: %w", st, ErrNotStruct)
	}
	s := &Support[T]{fields: make([]field, len(names))}
	for i, name := range names {
		f, ok := st.FieldByName(name)
		if !ok {
			return nil, fmt.Errorf("%v.%s: %w", st, name, ErrNoSuchField)
		}
		s.fields[i] = field{name: name, index: f.Index}
	}
	return s, nil
}

// MustOf is like Of but panics on error.
func MustOf[T any](names ...string) *Support[T] {
	s, err := Of[T](names...)
	if err != nil {
		panic(err)
	}
	return s
}

// OfReflection builds a Support over the fields selector picks from T's
// direct fields.
func OfReflection[T any](selector func(fields []reflect.StructField) []reflect.StructField) (*Support[T], error) {
	if selector == nil {
		return nil, fmt.Errorf("nil selector: %w", ErrConfig)
	}
	st := reflect.TypeFor[T]()
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v: %w", st, ErrNotStruct)
	}
	all := make([]reflect.StructField, st.NumField())
	for i := range all {
		all[i] = st.Field(i)
	}
	picked := selector(all)
	names := make([]string, len(picked))
	for i, f := range picked {
		names[i] = f.Name
	}
	return Of[T](names...)
}

// OfProjections builds a Support over the fields read by accessor funcs
// such as func(p *T) string { return p.Name }.
func OfProjections[T any](accessors ...any) (*Support[T], error) {
	names, err := projection.Fields(accessors...)
	if err != nil {
		return nil, err
	}
	return Of[T](names...)
}

// Fields returns the names of the fields in use.
func (s *Support[T]) Fields() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// Equal reports whether self and other, a T or *T, agree on every field.
// A nil self equals only a nil other.
func (s *Support[T]) Equal(self *T, other any) bool {
	var o *T
	switch v := other.(type) {
	case *T:
		o = v
	case T:
		o = &v
	case nil:
	default:
		return false
	}
	if self == nil || o == nil {
		return self == o
	}
	if self == o {
		return true
	}
	a, b := reflect.ValueOf(self).Elem(), reflect.ValueOf(o).Elem()
	for _, f := range s.fields {
		if !equalValue(fieldOf(a, f.index), fieldOf(b, f.index)) {
			return false
		}
	}
	return true
}

// Hash folds the hashes of the fields. Values that are Equal hash alike.
func (s *Support[T]) Hash(self *T) uint64 {
	if self == nil {
		return 0
	}
	v := reflect.ValueOf(self).Elem()
	var h uint64
	for _, f := range s.fields {
		h = h*31 + hashValue(fieldOf(v, f.index))
	}
	return h
}

// fieldOf returns the invalid Value when the path crosses a nil embedded
// pointer.
func fieldOf(v reflect.Value, index []int) reflect.Value {
	f, err := v.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}
	}
	return f
}
