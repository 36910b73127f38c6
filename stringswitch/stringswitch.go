// Package stringswitch maps a string to the index of an equal case string.
//
// The first lookups install equality guards specialized to the strings seen
// so far. Once as many distinct strings as there are cases have been seen,
// the switch settles on a full equality cascade over the cases; once the
// guard chain reaches its depth bound it settles on a map lookup instead.
package stringswitch

import (
	"errors"
	"fmt"

	"github.com/chazu/exotic/callsite"
)

const (
	NullMatch = callsite.NullMatch
	NoMatch   = callsite.NoMatch
)

// DefaultMaxDepth is the number of equality guards before the switch falls
// back to a map lookup.
const DefaultMaxDepth = 32

var (
	ErrDuplicateCase = errors.New("stringswitch: duplicate case")
	ErrNilValue      = errors.New("stringswitch: nil value")
)

// Options tunes a Switch. Zero fields take the package defaults.
type Options struct {
	Name     string
	MaxDepth int
}

// Switch returns the index of the case equal to a string.
type Switch struct {
	nullMatch bool
	cases     []string
	index     map[string]int
	chain     *callsite.Chain[string, int]
}

// New creates a Switch over cases with default options.
func New(nullMatch bool, cases ...string) (*Switch, error) {
	return NewWithOptions(Options{}, nullMatch, cases...)
}

// MustNew is like New but panics on a configuration error.
func MustNew(nullMatch bool, cases ...string) *Switch {
	s, err := New(nullMatch, cases...)
	if err != nil {
		panic(err)
	}
	return s
}

// NewWithOptions creates a Switch over cases. Cases must be pairwise
// distinct.
func NewWithOptions(opts Options, nullMatch bool, cases ...string) (*Switch, error) {
	if opts.Name == "" {
		opts.Name = "stringswitch"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	index := make(map[string]int, len(cases))
	for i, c := range cases {
		if first, ok := index[c]; ok {
			return nil, fmt.Errorf("%q at %d and %d: %w", c, first, i, ErrDuplicateCase)
		}
		index[c] = i
	}

	s := &Switch{
		nullMatch: nullMatch,
		cases:     append([]string(nil), cases...),
		index:     index,
	}
	s.chain = callsite.New(callsite.Config[string, int]{
		Name:     opts.Name,
		MaxDepth: opts.MaxDepth,
		Resolve: func(v string) (int, error) {
			return s.lookup(v), nil
		},
		Megamorphic: func() callsite.Target[string, int] {
			return func(v string) (int, error) {
				return s.lookup(v), nil
			}
		},
		Saturate: func(depth int) callsite.Target[string, int] {
			if depth != len(s.cases) {
				return nil
			}
			return s.cascade
		},
	})
	return s, nil
}

func (s *Switch) lookup(v string) int {
	if i, ok := s.index[v]; ok {
		return i
	}
	return NoMatch
}

func (s *Switch) cascade(v string) (int, error) {
	for i, c := range s.cases {
		if c == v {
			return i, nil
		}
	}
	return NoMatch, nil
}

// Index returns the index of the case equal to v, or NoMatch.
func (s *Switch) Index(v string) int {
	i, _ := s.chain.Invoke(v)
	return i
}

// IndexPtr is Index for an optional string. A nil pointer yields NullMatch
// when the switch allows it and ErrNilValue otherwise.
func (s *Switch) IndexPtr(v *string) (int, error) {
	if v == nil {
		if s.nullMatch {
			return NullMatch, nil
		}
		return 0, ErrNilValue
	}
	return s.Index(*v), nil
}

// Cases returns a copy of the registered cases.
func (s *Switch) Cases() []string {
	return append([]string(nil), s.cases...)
}

// Stats returns the switch's cache statistics.
func (s *Switch) Stats() callsite.Stats {
	return s.chain.Stats()
}
