// Package structural calls a method by name and signature on receivers of
// unrelated types, the way a duck-typed language would.
//
//	size := structural.MustNew(structural.PublicLookup(), "Len", reflect.TypeFor[func() int]())
//	n, err := structural.InvokeAs[int](size, receiver)
//
// Each receiver type seen at the call is resolved once and cached behind a
// type guard; after DefaultMaxDepth distinct receiver types the call falls
// back to a per-type table.
package structural

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/chazu/exotic/callsite"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("exotic.structural")

const (
	// MaxArity is the largest number of arguments a call can take.
	MaxArity = 8

	// DefaultMaxDepth is the number of receiver-type guards before the call
	// falls back to a table lookup.
	DefaultMaxDepth = 8
)

var (
	ErrConfig       = errors.New("structural: invalid configuration")
	ErrNotFound     = errors.New("structural: no such method")
	ErrInaccessible = errors.New("structural: method not accessible")
	ErrArity        = errors.New("structural: wrong number of arguments")
	ErrTypeMismatch = errors.New("structural: argument type mismatch")
	ErrNilReceiver  = errors.New("structural: nil receiver")
)

var errorType = reflect.TypeFor[error]()

// Options tunes a Call. Zero fields take the package defaults.
type Options struct {
	Name     string
	MaxDepth int
}

// Call is a structural method call site.
type Call struct {
	name   string
	sig    reflect.Type
	lookup Lookup
	chain  *callsite.Chain[reflect.Type, *target]
	table  sync.Map // reflect.Type -> *target, megamorphic state
}

// New creates a call site for the method called name with signature sig,
// given as a func type without receiver. Signatures take at most MaxArity
// parameters, are not variadic, and return nothing, one value, or a value
// and an error.
func New(lookup Lookup, name string, sig reflect.Type) (*Call, error) {
	return NewWithOptions(Options{}, lookup, name, sig)
}

// MustNew is like New but panics on a configuration error.
func MustNew(lookup Lookup, name string, sig reflect.Type) *Call {
	c, err := New(lookup, name, sig)
	if err != nil {
		panic(err)
	}
	return c
}

// NewWithOptions creates a call site.
func NewWithOptions(opts Options, lookup Lookup, name string, sig reflect.Type) (*Call, error) {
	if lookup.allow == nil {
		return nil, fmt.Errorf("zero Lookup: %w", ErrConfig)
	}
	if name == "" {
		return nil, fmt.Errorf("empty method name: %w", ErrConfig)
	}
	if err := validateSignature(sig); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "structural." + name
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	c := &Call{name: name, sig: sig, lookup: lookup}
	c.chain = callsite.New(callsite.Config[reflect.Type, *target]{
		Name:     opts.Name,
		MaxDepth: opts.MaxDepth,
		Resolve:  c.resolve,
		Megamorphic: func() callsite.Target[reflect.Type, *target] {
			return c.lookupTable
		},
	})
	return c, nil
}

func validateSignature(sig reflect.Type) error {
	if sig == nil || sig.Kind() != reflect.Func {
		return fmt.Errorf("signature %v is not a func type: %w", sig, ErrConfig)
	}
	if sig.IsVariadic() {
		return fmt.Errorf("variadic signature %v: %w", sig, ErrConfig)
	}
	if sig.NumIn() > MaxArity {
		return fmt.Errorf("signature %v takes more than %d arguments: %w", sig, MaxArity, ErrConfig)
	}
	switch sig.NumOut() {
	case 0, 1:
	case 2:
		if sig.Out(1) != errorType {
			return fmt.Errorf("signature %v: second result must be error: %w", sig, ErrConfig)
		}
	default:
		return fmt.Errorf("signature %v returns more than two results: %w", sig, ErrConfig)
	}
	return nil
}

func (c *Call) resolve(recv reflect.Type) (*target, error) {
	t, err := c.lookup.find(recv, c.name, c.sig)
	if err != nil {
		return nil, err
	}
	log.Debugf("%s: %v dispatches through %v", c.name, recv, t.declaredOn)
	return t, nil
}

func (c *Call) lookupTable(recv reflect.Type) (*target, error) {
	if t, ok := c.table.Load(recv); ok {
		return t.(*target), nil
	}
	t, err := c.resolve(recv)
	if err != nil {
		return nil, err
	}
	actual, _ := c.table.LoadOrStore(recv, t)
	return actual.(*target), nil
}

// Arity returns the number of arguments the call takes.
func (c *Call) Arity() int {
	return c.sig.NumIn()
}

// Invoke calls the method on recv. The argument count is checked before any
// dispatch; each argument must be assignable to its parameter type.
func (c *Call) Invoke(recv any, args ...any) (any, error) {
	if len(args) != c.sig.NumIn() {
		return nil, fmt.Errorf("%s takes %d, got %d: %w", c.name, c.sig.NumIn(), len(args), ErrArity)
	}
	if recv == nil {
		return nil, ErrNilReceiver
	}

	t, err := c.chain.Invoke(reflect.TypeOf(recv))
	if err != nil {
		return nil, err
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convertArg(a, c.sig.In(i))
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", c.name, i, err)
		}
		in[i] = v
	}

	method, err := t.bind(reflect.ValueOf(recv))
	if err != nil {
		return nil, err
	}
	return c.results(method.Call(in))
}

func convertArg(a any, param reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch param.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
			reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %v: %w", param, ErrTypeMismatch)
	}
	v := reflect.ValueOf(a)
	if !v.Type().AssignableTo(param) {
		return reflect.Value{}, fmt.Errorf("%v is not assignable to %v: %w", v.Type(), param, ErrTypeMismatch)
	}
	return v, nil
}

func (c *Call) results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if c.sig.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	}
	return out[0].Interface(), asError(out[1])
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func (t *target) bind(rv reflect.Value) (reflect.Value, error) {
	for _, i := range t.path {
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}, fmt.Errorf("nil embedded %v: %w", rv.Type(), ErrNilReceiver)
			}
			rv = rv.Elem()
		}
		rv = rv.Field(i)
	}
	embeddedNil := rv.Kind() == reflect.Pointer && len(t.path) > 0
	if (rv.Kind() == reflect.Interface || embeddedNil) && rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("nil embedded %v: %w", rv.Type(), ErrNilReceiver)
	}
	if t.addr {
		rv = rv.Addr()
	}
	return rv.Method(t.index), nil
}

// Stats returns the call site's cache statistics.
func (c *Call) Stats() callsite.Stats {
	return c.chain.Stats()
}

// InvokeAs invokes c and converts the result to R.
func InvokeAs[R any](c *Call, recv any, args ...any) (R, error) {
	var zero R
	v, err := c.Invoke(recv, args...)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("result %T is not %v: %w", v, reflect.TypeFor[R](), ErrTypeMismatch)
	}
	return r, nil
}
