package cell

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// StableField reads field V of struct S, treating the first non-zero value
// it sees as a constant owned by the object it was read from.
//
// While the field reads as its zero value the cell stays open and any owner
// may be passed. The first read that sees a non-zero value locks in that
// owner and value: later reads with the same owner return the locked value
// even if the field changes, and reads with any other owner fail with
// ErrNotConstant. When two owners race to lock in, the first successful
// compare-and-swap wins.
type StableField[S, V any] struct {
	name  string
	index []int
	lock  atomic.Pointer[lockIn[S, V]]
}

type lockIn[S, V any] struct {
	owner *S
	value V
}

// NewStableField creates a cell for the exported field name of S.
func NewStableField[S, V any](name string) (*StableField[S, V], error) {
	st := reflect.TypeFor[S]()
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v is not a struct: %w", st, ErrNoSuchField)
	}
	f, ok := st.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("%v.%s: %w", st, name, ErrNoSuchField)
	}
	for i := range f.Index {
		if !st.FieldByIndex(f.Index[:i+1]).IsExported() {
			return nil, fmt.Errorf("%v.%s: %w", st, name, ErrInaccessible)
		}
	}
	if vt := reflect.TypeFor[V](); f.Type != vt {
		return nil, fmt.Errorf("%v.%s is %v, not %v: %w", st, name, f.Type, vt, ErrTypeMismatch)
	}
	return &StableField[S, V]{name: name, index: f.Index}, nil
}

// MustNewStableField is like NewStableField but panics on error.
func MustNewStableField[S, V any](name string) *StableField[S, V] {
	f, err := NewStableField[S, V](name)
	if err != nil {
		panic(err)
	}
	return f
}

// Get reads the field of owner.
func (f *StableField[S, V]) Get(owner *S) (V, error) {
	var zero V
	if owner == nil {
		return zero, ErrNilOwner
	}
	if l := f.lock.Load(); l != nil {
		return f.check(l, owner)
	}

	fv, err := reflect.ValueOf(owner).Elem().FieldByIndexErr(f.index)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", f.name, ErrNilOwner)
	}
	if fv.IsZero() {
		return zero, nil
	}
	v := fv.Interface().(V)
	if f.lock.CompareAndSwap(nil, &lockIn[S, V]{owner: owner, value: v}) {
		log.Debugf("%s locked to %v on %p", f.name, v, owner)
		return v, nil
	}
	return f.check(f.lock.Load(), owner)
}

func (f *StableField[S, V]) check(l *lockIn[S, V], owner *S) (V, error) {
	if l.owner != owner {
		var zero V
		return zero, fmt.Errorf("%s is owned by %p, read through %p: %w", f.name, l.owner, owner, ErrNotConstant)
	}
	return l.value, nil
}

// Getter returns Get as a plain function value.
func (f *StableField[S, V]) Getter() func(*S) (V, error) {
	return f.Get
}

// Locked reports whether a value has been locked in.
func (f *StableField[S, V]) Locked() bool {
	return f.lock.Load() != nil
}
