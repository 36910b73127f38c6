package typeswitch

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"sort"
	"testing"

	"github.com/chazu/exotic/callsite"
)

type (
	hasA    interface{ A() }
	hasB    interface{ B() }
	hasAB   interface{ A(); B() }
	hasABC  interface{ A(); B(); C() }
	hasCD   interface{ C(); D() }
	hasNone interface{}
)

type (
	tA    struct{}
	tB    struct{}
	tAB   struct{}
	tABC  struct{}
	tABCD struct{}
	tC    struct{}
	tCD   struct{}
	named string
)

func (tA) A()    {}
func (tB) B()    {}
func (tAB) A()   {}
func (tAB) B()   {}
func (tABC) A()  {}
func (tABC) B()  {}
func (tABC) C()  {}
func (tABCD) A() {}
func (tABCD) B() {}
func (tABCD) C() {}
func (tABCD) D() {}
func (tC) C()    {}
func (tCD) C()   {}
func (tCD) D()   {}

func (n named) String() string { return string(n) }

var corpusValues = []any{
	tA{}, tB{}, tAB{}, tABC{}, tABCD{}, tC{}, tCD{},
	&tA{}, &tAB{}, &tCD{},
	named("x"), 1, "s", 4.5, int8(1), uint(2), true, []byte("b"), struct{}{},
}

var corpusTypes = func() []reflect.Type {
	types := []reflect.Type{
		reflect.TypeFor[hasA](),
		reflect.TypeFor[hasB](),
		reflect.TypeFor[hasAB](),
		reflect.TypeFor[hasABC](),
		reflect.TypeFor[hasCD](),
		reflect.TypeFor[fmt.Stringer](),
		reflect.TypeFor[hasNone](),
	}
	for _, v := range corpusValues {
		types = append(types, reflect.TypeOf(v))
	}
	return types
}()

func TestSimple(t *testing.T) {
	s, err := New(false, reflect.TypeFor[int](), reflect.TypeFor[string]())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		value any
		want  int
	}{
		{3, 0},
		{42, 0},
		{"foo", 1},
		{"bar", 1},
		{4.5, NoMatch},
	}
	for _, tt := range tests {
		got, err := s.Index(tt.value)
		if err != nil {
			t.Fatalf("Index(%v): %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Index(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestInterfaceCases(t *testing.T) {
	s := MustNew(false, reflect.TypeFor[fmt.Stringer](), reflect.TypeFor[any]())

	if got := s.MustIndex(named("x")); got != 0 {
		t.Errorf("Index(named) = %d, want 0", got)
	}
	if got := s.MustIndex(3); got != 1 {
		t.Errorf("Index(3) = %d, want 1", got)
	}
	if got := s.MustIndex(4.5); got != 1 {
		t.Errorf("Index(4.5) = %d, want 1", got)
	}
}

func TestUnrelatedInterfacesFirstWins(t *testing.T) {
	ab := MustNew(false, reflect.TypeFor[hasA](), reflect.TypeFor[hasB]())
	ba := MustNew(false, reflect.TypeFor[hasB](), reflect.TypeFor[hasA]())

	for i := 0; i < 2; i++ {
		if got := ab.MustIndex(tAB{}); got != 0 {
			t.Errorf("[A, B] Index(tAB) = %d, want 0", got)
		}
		if got := ba.MustIndex(tAB{}); got != 0 {
			t.Errorf("[B, A] Index(tAB) = %d, want 0", got)
		}
	}
	if got := ab.MustIndex("bar"); got != NoMatch {
		t.Errorf("Index(bar) = %d, want NoMatch", got)
	}
}

func TestNilHandling(t *testing.T) {
	strict := MustNew(false, reflect.TypeFor[string]())
	if _, err := strict.Index(nil); !errors.Is(err, ErrNilValue) {
		t.Errorf("Expected ErrNilValue, got %v", err)
	}

	lenient := MustNew(true, reflect.TypeFor[string]())
	tests := []struct {
		value any
		want  int
	}{
		{"foo", 0},
		{nil, NullMatch},
		{3, NoMatch},
	}
	for _, tt := range tests {
		if got := lenient.MustIndex(tt.value); got != tt.want {
			t.Errorf("Index(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}

	var typedNil *tA
	ptr := MustNew(true, reflect.TypeFor[*tA]())
	if got := ptr.MustIndex(typedNil); got != 0 {
		t.Errorf("Index(typed nil) = %d, want 0", got)
	}
}

func TestZeroCases(t *testing.T) {
	s := MustNew(true)
	for _, v := range corpusValues {
		if got := s.MustIndex(v); got != NoMatch {
			t.Errorf("Index(%v) = %d, want NoMatch", v, got)
		}
	}
	if got := s.MustIndex(nil); got != NullMatch {
		t.Errorf("Index(nil) = %d, want NullMatch", got)
	}
}

func TestNilCase(t *testing.T) {
	for _, nullMatch := range []bool{false, true} {
		if _, err := New(nullMatch, nil); !errors.Is(err, ErrNilCase) {
			t.Errorf("nullMatch=%v: expected ErrNilCase, got %v", nullMatch, err)
		}
	}
}

func TestInvalidPartialOrder(t *testing.T) {
	tests := []struct {
		name  string
		cases []reflect.Type
	}{
		{"any before string", []reflect.Type{reflect.TypeFor[any](), reflect.TypeFor[string]()}},
		{"stringer before named", []reflect.Type{reflect.TypeFor[fmt.Stringer](), reflect.TypeFor[named]()}},
		{"any before stringer", []reflect.Type{reflect.TypeFor[any](), reflect.TypeFor[fmt.Stringer]()}},
		{"narrow interface before wider", []reflect.Type{reflect.TypeFor[hasA](), reflect.TypeFor[hasAB]()}},
		{"transitive", []reflect.Type{reflect.TypeFor[hasA](), reflect.TypeFor[hasB](), reflect.TypeFor[tAB]()}},
		{"duplicate", []reflect.Type{reflect.TypeFor[int](), reflect.TypeFor[int]()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(false, tt.cases...); !errors.Is(err, ErrPartialOrder) {
				t.Errorf("Expected ErrPartialOrder, got %v", err)
			}
		})
	}
}

func TestStrategySelection(t *testing.T) {
	small := MustNew(false, corpusTypes[7:9]...)
	if _, ok := small.Strategy().(*scan); !ok {
		t.Errorf("Expected scan strategy below cutoff, got %T", small.Strategy())
	}

	large := MustNew(false, corpusTypes[7:7+DefaultStrategyCutoff]...)
	if _, ok := large.Strategy().(*memo); !ok {
		t.Errorf("Expected memo strategy at cutoff, got %T", large.Strategy())
	}
}

func TestMemoGrowsPerObservedType(t *testing.T) {
	cases := []reflect.Type{
		reflect.TypeFor[tABCD](),
		reflect.TypeFor[hasABC](),
		reflect.TypeFor[hasAB](),
		reflect.TypeFor[hasA](),
		reflect.TypeFor[hasCD](),
	}
	m := NewMemo(cases).(*memo)
	if m.Size() != len(cases) {
		t.Fatalf("Expected %d seeds, got %d", len(cases), m.Size())
	}

	if got := m.Index(reflect.TypeFor[tABC]()); got != 1 {
		t.Errorf("Index(tABC) = %d, want 1", got)
	}
	if got := m.Index(reflect.TypeFor[tCD]()); got != 4 {
		t.Errorf("Index(tCD) = %d, want 4", got)
	}
	if got := m.Index(reflect.TypeFor[int]()); got != NoMatch {
		t.Errorf("Index(int) = %d, want NoMatch", got)
	}
	m.Index(reflect.TypeFor[tABC]())
	if m.Size() != len(cases)+3 {
		t.Errorf("Expected %d entries, got %d", len(cases)+3, m.Size())
	}
}

// randomCaseList picks n distinct corpus types and orders them so that no
// case follows one that subsumes it: concrete types first, then interfaces
// from the largest method set to the smallest.
func randomCaseList(r *rand.Rand, n int) []reflect.Type {
	perm := r.Perm(len(corpusTypes))
	list := make([]reflect.Type, 0, n)
	for _, i := range perm[:n] {
		list = append(list, corpusTypes[i])
	}
	rank := func(t reflect.Type) int {
		if t.Kind() != reflect.Interface {
			return 1 << 10
		}
		return t.NumMethod()
	}
	sort.SliceStable(list, func(i, j int) bool {
		return rank(list[i]) > rank(list[j])
	})
	return list
}

func TestStrategiesAgree(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		n := 1 + r.IntN(20)
		cases := randomCaseList(r, n)
		if err := ValidatePartialOrder(cases); err != nil {
			t.Fatalf("generated list is invalid: %v", err)
		}

		scanS := NewScan(cases)
		memoS := NewMemo(cases)
		viaScan := mustNewWithOptions(Options{StrategyCutoff: 1 << 10}, false, cases...)
		viaMemo := mustNewWithOptions(Options{StrategyCutoff: 1}, false, cases...)

		for _, v := range corpusValues {
			typ := reflect.TypeOf(v)
			want := scanS.Index(typ)
			if got := memoS.Index(typ); got != want {
				t.Fatalf("round %d cases %v: memo(%v) = %d, scan = %d", round, cases, typ, got, want)
			}
			if got := viaScan.MustIndex(v); got != want {
				t.Fatalf("round %d: scan switch(%v) = %d, want %d", round, typ, got, want)
			}
			if got := viaMemo.MustIndex(v); got != want {
				t.Fatalf("round %d: memo switch(%v) = %d, want %d", round, typ, got, want)
			}
		}
	}
}

func TestIdempotentAfterStabilization(t *testing.T) {
	s := MustNew(false, reflect.TypeFor[int](), reflect.TypeFor[string](), reflect.TypeFor[hasA]())
	inputs := []any{1, "x", tA{}, tAB{}, 4.5}
	first := make([]int, len(inputs))
	for i, v := range inputs {
		first[i] = s.MustIndex(v)
	}
	before := s.Stats()

	for round := 0; round < 50; round++ {
		for i, v := range inputs {
			if got := s.MustIndex(v); got != first[i] {
				t.Fatalf("Index(%v) changed from %d to %d", v, first[i], got)
			}
		}
	}
	after := s.Stats()
	if after.Misses != before.Misses || after.Depth != before.Depth {
		t.Errorf("Expected no further rewrites, before %+v after %+v", before, after)
	}
	if after.State != callsite.CachePolymorphic {
		t.Errorf("Expected polymorphic, got %v", after.State)
	}
}

func TestMegamorphicFallback(t *testing.T) {
	for _, cutoff := range []int{1, 1 << 10} {
		s := mustNewWithOptions(Options{StrategyCutoff: cutoff}, false,
			reflect.TypeFor[tABCD](), reflect.TypeFor[hasAB](), reflect.TypeFor[fmt.Stringer]())
		for round := 0; round < 3; round++ {
			for _, v := range corpusValues {
				got := s.MustIndex(v)
				want := NoMatch
				switch v.(type) {
				case tABCD:
					want = 0
				case hasAB:
					want = 1
				case fmt.Stringer:
					want = 2
				}
				if got != want {
					t.Errorf("cutoff %d: Index(%T) = %d, want %d", cutoff, v, got, want)
				}
			}
		}
		if st := s.Stats().State; st != callsite.CacheMegamorphic {
			t.Errorf("cutoff %d: expected megamorphic, got %v", cutoff, st)
		}
	}
}

func mustNewWithOptions(opts Options, nullMatch bool, cases ...reflect.Type) *Switch {
	s, err := NewWithOptions(opts, nullMatch, cases...)
	if err != nil {
		panic(err)
	}
	return s
}

func BenchmarkTypeSwitchMonomorphic(b *testing.B) {
	s := MustNew(false, reflect.TypeFor[int](), reflect.TypeFor[string]())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Index(i)
	}
}

func BenchmarkTypeSwitchMegamorphic(b *testing.B) {
	s := MustNew(false, corpusTypes[7:14]...)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Index(corpusValues[i%len(corpusValues)])
	}
}

func BenchmarkTypeAssertionCascade(b *testing.B) {
	for i := 0; i < b.N; i++ {
		switch corpusValues[i%len(corpusValues)].(type) {
		case tA, tB, tAB, tABC, tABCD, tC, tCD:
		}
	}
}
