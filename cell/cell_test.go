package cell

import (
	"errors"
	"sync"
	"testing"
)

func TestMostlyConstant(t *testing.T) {
	c := NewMostlyConstant(42)
	get := c.Getter()
	if got := get(); got != 42 {
		t.Errorf("get() = %d, want 42", got)
	}

	c.SetAndDeoptimize(43)
	if got := get(); got != 43 {
		t.Errorf("get() after write = %d, want 43", got)
	}
	if got := c.Get(); got != 43 {
		t.Errorf("Get() = %d, want 43", got)
	}
	if v := c.Version(); v != 1 {
		t.Errorf("Version() = %d, want 1", v)
	}
}

func TestSetAny(t *testing.T) {
	c := NewMostlyConstant("a")
	if err := c.SetAny(3); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch, got %v", err)
	}
	if c.Get() != "a" || c.Version() != 0 {
		t.Errorf("Failed write changed the cell: %q v%d", c.Get(), c.Version())
	}
	if err := c.SetAny("b"); err != nil {
		t.Fatal(err)
	}
	if c.Get() != "b" {
		t.Errorf("Get() = %q, want b", c.Get())
	}
}

func TestScalarGetters(t *testing.T) {
	i := NewMostlyConstant(7)
	geti, err := i.IntGetter()
	if err != nil {
		t.Fatal(err)
	}
	i.SetAndDeoptimize(8)
	if geti() != 8 {
		t.Errorf("IntGetter() = %d, want 8", geti())
	}
	if _, err := i.Int64Getter(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch for Int64Getter, got %v", err)
	}
	if _, err := i.Float64Getter(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch for Float64Getter, got %v", err)
	}

	l := NewMostlyConstant(int64(1) << 40)
	getl, err := l.Int64Getter()
	if err != nil {
		t.Fatal(err)
	}
	if got := getl(); got != 1<<40 {
		t.Errorf("Int64Getter() = %d", got)
	}

	d := NewMostlyConstant(2.5)
	getd, err := d.Float64Getter()
	if err != nil {
		t.Fatal(err)
	}
	if got := getd(); got != 2.5 {
		t.Errorf("Float64Getter() = %v", got)
	}
	if _, err := d.IntGetter(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch for IntGetter, got %v", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	c := NewMostlyConstant(0)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.SetAndDeoptimize(g)
				c.Get()
			}
		}(g)
	}
	wg.Wait()
	if v := c.Version(); v != 800 {
		t.Errorf("Version() = %d, want 800", v)
	}
}

type Config struct {
	Port    int
	Name    string
	Ratio   float64
	secret  string
	Options *Options
	Inner
	hidden
}

type Options struct {
	Verbose bool
}

type Inner struct {
	Depth int
}

type hidden struct {
	Leak int
}

func TestStableField(t *testing.T) {
	port := MustNewStableField[Config, int]("Port")
	cfg := &Config{}

	got, err := port.Get(cfg)
	if err != nil || got != 0 {
		t.Fatalf("Get() = %d, %v, want 0", got, err)
	}
	if port.Locked() {
		t.Fatal("Zero value locked the cell")
	}

	// Another owner may still read while the cell is open.
	if _, err := port.Get(&Config{}); err != nil {
		t.Fatalf("Get() on a second owner before lock-in: %v", err)
	}

	cfg.Port = 8080
	if got, err := port.Get(cfg); err != nil || got != 8080 {
		t.Fatalf("Get() = %d, %v, want 8080", got, err)
	}
	if !port.Locked() {
		t.Fatal("Expected the cell to be locked")
	}

	cfg.Port = 9090
	if got, err := port.Get(cfg); err != nil || got != 8080 {
		t.Errorf("Get() after change = %d, %v, want locked 8080", got, err)
	}

	if _, err := port.Get(&Config{Port: 8080}); !errors.Is(err, ErrNotConstant) {
		t.Errorf("Expected ErrNotConstant, got %v", err)
	}
	if _, err := port.Get(nil); !errors.Is(err, ErrNilOwner) {
		t.Errorf("Expected ErrNilOwner, got %v", err)
	}
}

func TestStableFieldTypes(t *testing.T) {
	name := MustNewStableField[Config, string]("Name")
	cfg := &Config{Name: "x"}
	if got, _ := name.Get(cfg); got != "x" {
		t.Errorf("Name = %q", got)
	}

	ratio := MustNewStableField[Config, float64]("Ratio")
	if got, _ := ratio.Get(&Config{Ratio: 0.5}); got != 0.5 {
		t.Errorf("Ratio = %v", got)
	}

	depth := MustNewStableField[Config, int]("Depth")
	if got, _ := depth.Get(&Config{Inner: Inner{Depth: 3}}); got != 3 {
		t.Errorf("promoted Depth = %d", got)
	}

	opts := MustNewStableField[Config, *Options]("Options")
	o := &Options{Verbose: true}
	if got, _ := opts.Get(&Config{Options: o}); got != o {
		t.Errorf("Options = %p, want %p", got, o)
	}
}

func TestStableFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		new  func() error
		want error
	}{
		{"missing", func() error { _, err := NewStableField[Config, int]("Missing"); return err }, ErrNoSuchField},
		{"unexported", func() error { _, err := NewStableField[Config, string]("secret"); return err }, ErrInaccessible},
		{"through unexported embed", func() error { _, err := NewStableField[Config, int]("Leak"); return err }, ErrInaccessible},
		{"wrong type", func() error { _, err := NewStableField[Config, int64]("Port"); return err }, ErrTypeMismatch},
		{"not a struct", func() error { _, err := NewStableField[int, int]("Port"); return err }, ErrNoSuchField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.new(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStableFieldRace(t *testing.T) {
	port := MustNewStableField[Config, int]("Port")
	owners := make([]*Config, 8)
	for i := range owners {
		owners[i] = &Config{Port: i + 1}
	}

	var wg sync.WaitGroup
	results := make([]error, len(owners))
	for i, o := range owners {
		wg.Add(1)
		go func(i int, o *Config) {
			defer wg.Done()
			_, results[i] = port.Get(o)
		}(i, o)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		switch {
		case err == nil:
			winners++
		case !errors.Is(err, ErrNotConstant):
			t.Errorf("owner %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly one owner, got %d", winners)
	}
}

func BenchmarkMostlyConstantGetter(b *testing.B) {
	get := NewMostlyConstant(42).Getter()
	for i := 0; i < b.N; i++ {
		get()
	}
}
