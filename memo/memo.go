// Package memo caches the results of a pure function behind value-equality
// guards, so that a call with an already seen key costs a few comparisons.
//
//	square := memo.MustNew(func(n int) (int, error) { return n * n, nil }, memo.Options{})
//	v, _ := square.Apply(12)
//
// The function is assumed to be deterministic. It runs at most once per key;
// errors are returned to the caller and the key is retried on the next call.
// Callers racing on a key that has no value yet wait for the call in flight.
// Once a key has a value, Apply never blocks.
//
// Keys must be non-nil and comparable all the way down: a key that holds a
// slice, map or func, directly or through an interface, is rejected with
// ErrKeyNotComparable.
package memo

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/chazu/exotic/callsite"
)

// DefaultMaxDepth is the number of key guards before the memoizer falls back
// to its table.
const DefaultMaxDepth = 16

var (
	ErrNilFunc          = errors.New("memo: nil function")
	ErrNilKey           = errors.New("memo: nil key")
	ErrKeyNotComparable = errors.New("memo: key is not comparable")
	ErrNilValue         = errors.New("memo: function returned nil")
)

// Options tunes a Memoizer. Zero fields take the package defaults.
type Options struct {
	Name     string
	MaxDepth int
}

// Memoizer is a memoized function from K to V.
type Memoizer[K comparable, V any] struct {
	fn    func(K) (V, error)
	check bool
	chain *callsite.Chain[K, V]
	table sync.Map // K -> *entry[V]
}

type entry[V any] struct {
	mu    sync.Mutex
	done  atomic.Bool
	value V
}

// New memoizes fn.
func New[K comparable, V any](fn func(K) (V, error), opts Options) (*Memoizer[K, V], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if opts.Name == "" {
		opts.Name = "memo"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	kt := reflect.TypeFor[K]()
	m := &Memoizer[K, V]{fn: fn, check: nilable(kt) || holdsInterface(kt)}
	m.chain = callsite.New(callsite.Config[K, V]{
		Name:     opts.Name,
		MaxDepth: opts.MaxDepth,
		Resolve:  m.compute,
		Megamorphic: func() callsite.Target[K, V] {
			return m.compute
		},
	})
	return m, nil
}

// MustNew is like New but panics on a nil function.
func MustNew[K comparable, V any](fn func(K) (V, error), opts Options) *Memoizer[K, V] {
	m, err := New(fn, opts)
	if err != nil {
		panic(err)
	}
	return m
}

// Apply returns fn(key), computing it on the first call with an equal key.
func (m *Memoizer[K, V]) Apply(key K) (V, error) {
	if m.check {
		if err := checkKey(key); err != nil {
			var zero V
			return zero, err
		}
	}
	return m.chain.Invoke(key)
}

// Func returns Apply as a plain function value.
func (m *Memoizer[K, V]) Func() func(K) (V, error) {
	return m.Apply
}

// Stats returns the memoizer's cache statistics.
func (m *Memoizer[K, V]) Stats() callsite.Stats {
	return m.chain.Stats()
}

// compute returns the stored value for key, running fn under the entry's
// lock if no call has succeeded yet.
func (m *Memoizer[K, V]) compute(key K) (V, error) {
	e, ok := m.table.Load(key)
	if !ok {
		e, _ = m.table.LoadOrStore(key, &entry[V]{})
	}
	ent := e.(*entry[V])
	if ent.done.Load() {
		return ent.value, nil
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.done.Load() {
		return ent.value, nil
	}
	v, err := m.fn(key)
	if err != nil {
		return v, err
	}
	if isNil(v) {
		return v, fmt.Errorf("key %v: %w", key, ErrNilValue)
	}
	ent.value = v
	ent.done.Store(true)
	return v, nil
}

// checkKey rejects nil keys and keys whose dynamic value cannot be
// compared or hashed.
func checkKey[K comparable](key K) error {
	if isNil(key) {
		return ErrNilKey
	}
	rv := reflect.ValueOf(any(key))
	if !comparableValue(rv) {
		return fmt.Errorf("%v: %w", rv.Type(), ErrKeyNotComparable)
	}
	return nil
}

// comparableValue walks interfaces, structs and arrays, which compile as
// comparable but may hold a slice, map or func at run time.
func comparableValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return false
	case reflect.Interface:
		return v.IsNil() || comparableValue(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !comparableValue(v.Field(i)) {
				return false
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !comparableValue(v.Index(i)) {
				return false
			}
		}
	}
	return true
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan,
		reflect.Interface, reflect.UnsafePointer:
		return true
	}
	return false
}

// holdsInterface reports whether a value of t can carry an interface, the
// only way a comparable type can fail to compare.
func holdsInterface(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Array:
		return holdsInterface(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsInterface(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

func isNil[V any](v V) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	return nilable(rv.Type()) && rv.IsNil()
}
