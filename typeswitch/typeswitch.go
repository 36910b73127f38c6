// Package typeswitch encodes a switch on dynamic types as a switch on ints.
//
// Instead of a cascade of type assertions
//
//	switch v.(type) {
//	case nil:
//	case int:
//	case fmt.Stringer:
//	}
//
// a Switch is built once from an ordered list of case types and returns the
// index of the first case the value's dynamic type belongs to:
//
//	var kinds = typeswitch.MustNew(true, reflect.TypeFor[int](), reflect.TypeFor[fmt.Stringer]())
//
//	switch kinds.MustIndex(v) {
//	case typeswitch.NullMatch:
//	case 0:
//	case 1:
//	default: // typeswitch.NoMatch
//	}
//
// A value belongs to a case when its dynamic type is the case type, or when
// the case is an interface the dynamic type implements. Cases must be listed
// most specific first: a case may not follow a case that already matches
// everything it would match.
package typeswitch

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/chazu/exotic/callsite"
)

const (
	NullMatch = callsite.NullMatch
	NoMatch   = callsite.NoMatch
)

const (
	// DefaultMaxDepth is the number of type guards before the switch falls
	// back to its strategy.
	DefaultMaxDepth = 8

	// DefaultStrategyCutoff is the case count from which the memo strategy
	// replaces the ordered scan.
	DefaultStrategyCutoff = 5
)

var (
	ErrNilCase      = errors.New("typeswitch: nil case")
	ErrPartialOrder = errors.New("typeswitch: cases violate partial order")
	ErrNilValue     = errors.New("typeswitch: nil value")
)

// Options tunes a Switch. Zero fields take the package defaults.
type Options struct {
	Name           string
	MaxDepth       int
	StrategyCutoff int
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "typeswitch"
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.StrategyCutoff <= 0 {
		o.StrategyCutoff = DefaultStrategyCutoff
	}
	return o
}

// Switch returns the index of the first case matching a value's type.
type Switch struct {
	nullMatch bool
	cases     []reflect.Type
	strategy  Strategy
	chain     *callsite.Chain[reflect.Type, int]
}

// New creates a Switch over cases with default options. If nullMatch is
// true, Index(nil) returns NullMatch; otherwise it fails with ErrNilValue.
func New(nullMatch bool, cases ...reflect.Type) (*Switch, error) {
	return NewWithOptions(Options{}, nullMatch, cases...)
}

// MustNew is like New but panics on a configuration error. It is meant for
// package-level switches.
func MustNew(nullMatch bool, cases ...reflect.Type) *Switch {
	s, err := New(nullMatch, cases...)
	if err != nil {
		panic(err)
	}
	return s
}

// NewWithOptions creates a Switch over cases.
func NewWithOptions(opts Options, nullMatch bool, cases ...reflect.Type) (*Switch, error) {
	if err := ValidatePartialOrder(cases); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	cases = append([]reflect.Type(nil), cases...)

	var strategy Strategy
	if len(cases) < opts.StrategyCutoff {
		strategy = NewScan(cases)
	} else {
		strategy = NewMemo(cases)
	}

	s := &Switch{
		nullMatch: nullMatch,
		cases:     cases,
		strategy:  strategy,
	}
	s.chain = callsite.New(callsite.Config[reflect.Type, int]{
		Name:     opts.Name,
		MaxDepth: opts.MaxDepth,
		Resolve: func(t reflect.Type) (int, error) {
			return strategy.Index(t), nil
		},
		Megamorphic: strategy.Target,
	})
	return s, nil
}

// ValidatePartialOrder checks that no case is nil and that no case follows
// one that subsumes it.
func ValidatePartialOrder(cases []reflect.Type) error {
	for i, c := range cases {
		if c == nil {
			return fmt.Errorf("case %d: %w", i, ErrNilCase)
		}
	}
	for i := range cases {
		for j := i + 1; j < len(cases); j++ {
			if matches(cases[i], cases[j]) {
				return fmt.Errorf("case %d (%v) is located after case %d (%v), which already matches it: %w",
					j, cases[j], i, cases[i], ErrPartialOrder)
			}
		}
	}
	return nil
}

// Index returns the index of the first case v belongs to, NullMatch for a
// nil interface when the switch allows it, or NoMatch. A typed nil pointer
// is not nil here and dispatches on its pointer type.
func (s *Switch) Index(v any) (int, error) {
	if v == nil {
		if s.nullMatch {
			return NullMatch, nil
		}
		return 0, ErrNilValue
	}
	return s.chain.Invoke(reflect.TypeOf(v))
}

// MustIndex is like Index but panics on a nil value in a non-null switch.
func (s *Switch) MustIndex(v any) int {
	i, err := s.Index(v)
	if err != nil {
		panic(err)
	}
	return i
}

// Cases returns a copy of the registered cases.
func (s *Switch) Cases() []reflect.Type {
	return append([]reflect.Type(nil), s.cases...)
}

// Strategy returns the classification strategy picked at creation.
func (s *Switch) Strategy() Strategy {
	return s.strategy
}

// Stats returns the switch's cache statistics.
func (s *Switch) Stats() callsite.Stats {
	return s.chain.Stats()
}
