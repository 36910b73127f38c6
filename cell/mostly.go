// Package cell holds values that are read far more often than they change.
//
// A MostlyConstant is a single overwrite slot whose readers always see the
// latest write. A StableField discovers its value by reading a struct field
// and then pins it to the one object it was first seen on.
package cell

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("exotic.cell")

var (
	ErrTypeMismatch = errors.New("cell: type mismatch")
	ErrNoSuchField  = errors.New("cell: no such field")
	ErrInaccessible = errors.New("cell: field not accessible")
	ErrNotConstant  = errors.New("cell: not constant")
	ErrNilOwner     = errors.New("cell: nil owner")
)

type snapshot[T any] struct {
	value   T
	version uint64
}

// MostlyConstant is a value that may be replaced at any time. Every write
// installs a new snapshot; readers handed out earlier pick it up on their
// next call.
type MostlyConstant[T any] struct {
	current atomic.Pointer[snapshot[T]]
}

// NewMostlyConstant creates a cell holding v at version 0.
func NewMostlyConstant[T any](v T) *MostlyConstant[T] {
	c := &MostlyConstant[T]{}
	c.current.Store(&snapshot[T]{value: v})
	return c
}

// Get returns the current value.
func (c *MostlyConstant[T]) Get() T {
	return c.current.Load().value
}

// Version returns the number of writes since creation.
func (c *MostlyConstant[T]) Version() uint64 {
	return c.current.Load().version
}

// Getter returns a reader bound to c.
func (c *MostlyConstant[T]) Getter() func() T {
	return func() T { return c.current.Load().value }
}

// SetAndDeoptimize replaces the value. Readers observe it on their next call.
func (c *MostlyConstant[T]) SetAndDeoptimize(v T) {
	for {
		old := c.current.Load()
		next := &snapshot[T]{value: v, version: old.version + 1}
		if c.current.CompareAndSwap(old, next) {
			log.Debugf("%T set to %v (version %d)", c, v, next.version)
			return
		}
	}
}

// SetAny replaces the value with v, which must have the cell's type.
func (c *MostlyConstant[T]) SetAny(v any) error {
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("%T is not %v: %w", v, reflect.TypeFor[T](), ErrTypeMismatch)
	}
	c.SetAndDeoptimize(t)
	return nil
}

// IntGetter returns an int reader. It fails if the cell does not hold ints.
func (c *MostlyConstant[T]) IntGetter() (func() int, error) {
	return scalarGetter[T, int](c)
}

// Int64Getter returns an int64 reader. It fails if the cell does not hold
// int64s.
func (c *MostlyConstant[T]) Int64Getter() (func() int64, error) {
	return scalarGetter[T, int64](c)
}

// Float64Getter returns a float64 reader. It fails if the cell does not hold
// float64s.
func (c *MostlyConstant[T]) Float64Getter() (func() float64, error) {
	return scalarGetter[T, float64](c)
}

func scalarGetter[T, S any](c *MostlyConstant[T]) (func() S, error) {
	if reflect.TypeFor[T]() != reflect.TypeFor[S]() {
		return nil, fmt.Errorf("cell holds %v, not %v: %w", reflect.TypeFor[T](), reflect.TypeFor[S](), ErrTypeMismatch)
	}
	return func() S {
		return any(c.current.Load().value).(S)
	}, nil
}
