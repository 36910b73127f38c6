// Package visitor dispatches on the exact dynamic type of a value to a
// handler registered for that type.
//
//	eval, err := visitor.New(func(r *visitor.Registry[Env, int]) {
//		visitor.On(r, func(v *visitor.Visitor[Env, int], n *Num, env Env) (int, error) {
//			return n.Value, nil
//		})
//		visitor.On(r, func(v *visitor.Visitor[Env, int], a *Add, env Env) (int, error) {
//			l, err := v.Visit(a.Left, env)
//			...
//		})
//	})
//
// The registry is frozen once New returns. Types are matched exactly: a
// handler for *Num does not receive Num, and interface types cannot be
// registered.
package visitor

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/chazu/exotic/callsite"
)

// DefaultMaxDepth is the number of type guards before the visitor falls
// back to a map lookup.
const DefaultMaxDepth = 10

var (
	ErrConfig        = errors.New("visitor: invalid configuration")
	ErrNilExpr       = errors.New("visitor: nil expression")
	ErrUnhandledType = errors.New("visitor: unhandled type")
)

// Visitlet handles one registered type. It receives the visitor so that it
// can recurse into sub-expressions.
type Visitlet[P, R any] func(v *Visitor[P, R], expr any, p P) (R, error)

// Options tunes a Visitor. Zero fields take the package defaults.
type Options struct {
	Name     string
	MaxDepth int
}

// Registry collects handlers while a Visitor is being configured.
type Registry[P, R any] struct {
	handlers map[reflect.Type]Visitlet[P, R]
	frozen   bool
	err      error
}

// Register adds a handler for values whose dynamic type is exactly t. The
// first error is kept and reported by New; later registrations are ignored.
func (r *Registry[P, R]) Register(t reflect.Type, fn Visitlet[P, R]) *Registry[P, R] {
	if r.err != nil {
		return r
	}
	switch {
	case r.frozen:
		r.err = fmt.Errorf("register %v after configuration: %w", t, ErrConfig)
	case t == nil:
		r.err = fmt.Errorf("nil type: %w", ErrConfig)
	case fn == nil:
		r.err = fmt.Errorf("nil handler for %v: %w", t, ErrConfig)
	case t.Kind() == reflect.Interface:
		r.err = fmt.Errorf("interface type %v: %w", t, ErrConfig)
	default:
		if _, dup := r.handlers[t]; dup {
			r.err = fmt.Errorf("there is already a handler for %v: %w", t, ErrConfig)
			break
		}
		r.handlers[t] = fn
	}
	return r
}

// On registers a typed handler for T.
func On[T, P, R any](r *Registry[P, R], fn func(v *Visitor[P, R], expr T, p P) (R, error)) *Registry[P, R] {
	if fn == nil {
		return r.Register(reflect.TypeFor[T](), nil)
	}
	return r.Register(reflect.TypeFor[T](), func(v *Visitor[P, R], expr any, p P) (R, error) {
		return fn(v, expr.(T), p)
	})
}

// Visitor dispatches expressions to their handlers.
type Visitor[P, R any] struct {
	handlers map[reflect.Type]Visitlet[P, R]
	chain    *callsite.Chain[reflect.Type, Visitlet[P, R]]
}

// New builds a visitor from the handlers configure registers.
func New[P, R any](configure func(*Registry[P, R])) (*Visitor[P, R], error) {
	return NewWithOptions(Options{}, configure)
}

// MustNew is like New but panics on a configuration error.
func MustNew[P, R any](configure func(*Registry[P, R])) *Visitor[P, R] {
	v, err := New(configure)
	if err != nil {
		panic(err)
	}
	return v
}

// NewWithOptions builds a visitor.
func NewWithOptions[P, R any](opts Options, configure func(*Registry[P, R])) (*Visitor[P, R], error) {
	if configure == nil {
		return nil, fmt.Errorf("nil configure func: %w", ErrConfig)
	}
	if opts.Name == "" {
		opts.Name = "visitor"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	reg := &Registry[P, R]{handlers: make(map[reflect.Type]Visitlet[P, R])}
	configure(reg)
	reg.frozen = true
	if reg.err != nil {
		return nil, reg.err
	}

	v := &Visitor[P, R]{handlers: reg.handlers}
	v.chain = callsite.New(callsite.Config[reflect.Type, Visitlet[P, R]]{
		Name:     opts.Name,
		MaxDepth: opts.MaxDepth,
		Resolve:  v.lookup,
		Megamorphic: func() callsite.Target[reflect.Type, Visitlet[P, R]] {
			return v.lookup
		},
	})
	return v, nil
}

func (v *Visitor[P, R]) lookup(t reflect.Type) (Visitlet[P, R], error) {
	fn, ok := v.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%v: %w", t, ErrUnhandledType)
	}
	return fn, nil
}

// Visit calls the handler registered for the dynamic type of expr.
func (v *Visitor[P, R]) Visit(expr any, p P) (R, error) {
	var zero R
	if expr == nil {
		return zero, ErrNilExpr
	}
	fn, err := v.chain.Invoke(reflect.TypeOf(expr))
	if err != nil {
		return zero, err
	}
	return fn(v, expr, p)
}

// Stats returns the visitor's cache statistics.
func (v *Visitor[P, R]) Stats() callsite.Stats {
	return v.chain.Stats()
}
