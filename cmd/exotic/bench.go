package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chazu/exotic/cell"
	"github.com/chazu/exotic/config"
	"github.com/chazu/exotic/memo"
	"github.com/chazu/exotic/profile"
	"github.com/chazu/exotic/stringswitch"
	"github.com/chazu/exotic/structural"
	"github.com/chazu/exotic/typeswitch"
	"github.com/chazu/exotic/visitor"
)

// handleBenchCommand processes `exotic bench`.
func handleBenchCommand(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	n := fs.Int("n", 0, "Iterations per workload (default from exotic.toml, else 1000000)")
	dir := fs.String("config", ".", "Directory to search for exotic.toml")
	out := fs.String("profile", "", "Write the call-site profile to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.FindAndLoad(*dir)
	if err != nil {
		return err
	}
	cfg.ConfigureLogging()
	if *n > 0 {
		cfg.Bench.Iterations = *n
	}
	if *out == "" && cfg.Bench.Profile != "" {
		*out = cfg.Bench.Profile
		if !filepath.IsAbs(*out) && cfg.Dir != "" {
			*out = filepath.Join(cfg.Dir, *out)
		}
	}

	prof := profile.NewProfiler()
	if err := runBench(os.Stdout, cfg, prof); err != nil {
		return err
	}
	if *out != "" {
		if err := profile.WriteFile(*out, prof.Snapshot()); err != nil {
			return err
		}
		log.Infof("wrote profile to %s", *out)
	}
	return nil
}

type workload struct {
	name string
	site profile.Source
	run  func(i int) error
}

func runBench(w io.Writer, cfg *config.Config, prof *profile.Profiler) error {
	workloads, err := buildWorkloads(cfg)
	if err != nil {
		return err
	}
	n := cfg.Bench.Iterations

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKLOAD\tNS/OP\tSTATE\tDEPTH\tHIT RATE")
	for _, wl := range workloads {
		if wl.site != nil {
			prof.Track(wl.name, wl.site)
		}
		start := time.Now()
		for i := 0; i < n; i++ {
			if err := wl.run(i); err != nil {
				return fmt.Errorf("%s: %w", wl.name, err)
			}
		}
		nsPerOp := float64(time.Since(start).Nanoseconds()) / float64(n)

		state, depth, rate := "-", "-", "-"
		if wl.site != nil {
			st := wl.site.Stats()
			state = st.State.String()
			depth = fmt.Sprintf("%d/%d", st.Depth, st.MaxDepth)
			rate = fmt.Sprintf("%.1f%%", st.HitRate())
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\t%s\n", wl.name, nsPerOp, state, depth, rate)
	}
	return tw.Flush()
}

type celsius float64

func (c celsius) String() string { return fmt.Sprintf("%.1fC", float64(c)) }

var errBench = errors.New("bench")

func buildWorkloads(cfg *config.Config) ([]workload, error) {
	kinds, err := typeswitch.NewWithOptions(cfg.TypeSwitchOptions("kinds"), true,
		reflect.TypeFor[int](),
		reflect.TypeFor[string](),
		reflect.TypeFor[error](),
		reflect.TypeFor[fmt.Stringer](),
		reflect.TypeFor[[]byte](),
		reflect.TypeFor[float64](),
	)
	if err != nil {
		return nil, err
	}
	values := []any{1, "two", errBench, celsius(21.5), []byte("x"), 2.5, nil, struct{}{}}

	verbs, err := stringswitch.NewWithOptions(cfg.StringSwitchOptions("verbs"), false,
		"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	if err != nil {
		return nil, err
	}
	requests := []string{"GET", "GET", "POST", "GET", "PUT", "TRACE"}

	size, err := structural.NewWithOptions(cfg.StructuralOptions("size"), structural.PublicLookup(),
		"Len", reflect.TypeFor[func() int]())
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString("builder")
	receivers := []any{bytes.NewBufferString("buffer"), &sb, strings.NewReader("reader")}

	fib, err := memo.New(func(n int) (int, error) {
		a, b := 0, 1
		for i := 0; i < n; i++ {
			a, b = b, a+b
		}
		return a, nil
	}, cfg.MemoOptions("fib"))
	if err != nil {
		return nil, err
	}

	limit := cell.NewMostlyConstant(100)
	getLimit := limit.Getter()

	eval, err := newEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	expr := &addExpr{&numExpr{1}, &addExpr{&numExpr{2}, &numExpr{3}}}

	return []workload{
		{"typeswitch", kinds, func(i int) error {
			_, err := kinds.Index(values[i%len(values)])
			return err
		}},
		{"stringswitch", verbs, func(i int) error {
			verbs.Index(requests[i%len(requests)])
			return nil
		}},
		{"structural", size, func(i int) error {
			_, err := size.Invoke(receivers[i%len(receivers)])
			return err
		}},
		{"memo", fib, func(i int) error {
			_, err := fib.Apply(i % 40)
			return err
		}},
		{"mostly-constant", nil, func(i int) error {
			if i%100_000 == 0 {
				limit.SetAndDeoptimize(getLimit() + 1)
			}
			getLimit()
			return nil
		}},
		{"visitor", eval, func(i int) error {
			v, err := eval.Visit(expr, struct{}{})
			if err == nil && v != 6 {
				err = fmt.Errorf("got %d, want 6", v)
			}
			return err
		}},
	}, nil
}

type numExpr struct{ value int }
type addExpr struct{ left, right any }

func newEvaluator(cfg *config.Config) (*visitor.Visitor[struct{}, int], error) {
	return visitor.NewWithOptions(cfg.VisitorOptions("eval"), func(r *visitor.Registry[struct{}, int]) {
		visitor.On(r, func(v *visitor.Visitor[struct{}, int], n *numExpr, _ struct{}) (int, error) {
			return n.value, nil
		})
		visitor.On(r, func(v *visitor.Visitor[struct{}, int], a *addExpr, p struct{}) (int, error) {
			l, err := v.Visit(a.left, p)
			if err != nil {
				return 0, err
			}
			r, err := v.Visit(a.right, p)
			return l + r, err
		})
	})
}
