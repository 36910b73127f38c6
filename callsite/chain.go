package callsite

import (
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("exotic.callsite")

// Target is a dispatch function installed on a chain node.
type Target[K comparable, V any] func(key K) (V, error)

// Config describes how a chain resolves keys and what it degrades to.
type Config[K comparable, V any] struct {
	// Name identifies the chain in logs and stats.
	Name string

	// MaxDepth bounds the number of guards. A miss at this depth rewrites the
	// root to the Megamorphic target. Zero means the chain never demotes.
	MaxDepth int

	// Resolve computes the value for a key on a miss. Errors are returned to
	// the caller and never cached.
	Resolve func(key K) (V, error)

	// Megamorphic builds the stable target installed on the root once the
	// chain reaches MaxDepth. Required when MaxDepth > 0.
	Megamorphic func() Target[K, V]

	// Saturate is consulted on every miss with the depth of the node that
	// missed. A non-nil result replaces the root before the depth bound.
	Saturate func(depth int) Target[K, V]
}

// Chain is a self-rewriting guard chain. It is safe for concurrent use:
// every rewrite is a single atomic store of a node's target, and a race
// between two misses on the same node only installs one of two equivalent
// guards.
type Chain[K comparable, V any] struct {
	name        string
	maxDepth    int
	resolve     func(K) (V, error)
	megamorphic func() Target[K, V]
	saturate    func(int) Target[K, V]

	root *node[K, V]

	depth     atomic.Int32
	stable    atomic.Bool
	mega      atomic.Bool
	hits      atomic.Uint64
	misses    atomic.Uint64
	fallbacks atomic.Uint64
}

type node[K comparable, V any] struct {
	depth  int
	chain  *Chain[K, V]
	target atomic.Pointer[Target[K, V]]
}

// New creates a chain whose root points at its miss handler.
func New[K comparable, V any](cfg Config[K, V]) *Chain[K, V] {
	if cfg.Resolve == nil {
		panic("callsite: Config.Resolve is nil")
	}
	if cfg.MaxDepth > 0 && cfg.Megamorphic == nil {
		panic("callsite: Config.Megamorphic is nil with a depth bound")
	}
	c := &Chain[K, V]{
		name:        cfg.Name,
		maxDepth:    cfg.MaxDepth,
		resolve:     cfg.Resolve,
		megamorphic: cfg.Megamorphic,
		saturate:    cfg.Saturate,
	}
	c.root = c.newNode(0)
	return c
}

func (c *Chain[K, V]) newNode(depth int) *node[K, V] {
	n := &node[K, V]{depth: depth, chain: c}
	n.reset()
	return n
}

func (n *node[K, V]) reset() {
	fallback := Target[K, V](n.fallback)
	n.target.Store(&fallback)
}

func (n *node[K, V]) invoke(key K) (V, error) {
	return (*n.target.Load())(key)
}

// Invoke dispatches key through the chain.
func (c *Chain[K, V]) Invoke(key K) (V, error) {
	return (*c.root.target.Load())(key)
}

// Name returns the chain's configured name.
func (c *Chain[K, V]) Name() string {
	return c.name
}

func (n *node[K, V]) fallback(key K) (V, error) {
	c := n.chain
	c.misses.Add(1)

	value, err := c.resolve(key)
	if err != nil {
		return value, err
	}

	if c.maxDepth > 0 && n.depth >= c.maxDepth {
		c.demote(n.depth)
		return value, nil
	}

	if c.saturate != nil {
		if t := c.saturate(n.depth); t != nil {
			c.install(t)
			c.stable.Store(true)
			log.Debugf("%s: saturated after %d guards", c.name, n.depth)
			return value, nil
		}
	}

	next := c.newNode(n.depth + 1)
	guard := Target[K, V](func(k K) (V, error) {
		if k == key {
			c.hits.Add(1)
			return value, nil
		}
		return next.invoke(k)
	})
	n.target.Store(&guard)
	c.recordDepth(n.depth + 1)
	return value, nil
}

func (c *Chain[K, V]) demote(depth int) {
	c.install(c.megamorphic())
	c.mega.Store(true)
	c.stable.Store(true)
	log.Debugf("%s: megamorphic after %d guards", c.name, depth)
}

// install replaces the root target with t, counting each call it serves.
func (c *Chain[K, V]) install(t Target[K, V]) {
	counted := Target[K, V](func(k K) (V, error) {
		c.fallbacks.Add(1)
		return t(k)
	})
	c.root.target.Store(&counted)
}

func (c *Chain[K, V]) recordDepth(depth int) {
	for {
		cur := c.depth.Load()
		if int32(depth) <= cur || c.depth.CompareAndSwap(cur, int32(depth)) {
			return
		}
	}
}

// State reports the chain's current cache state.
func (c *Chain[K, V]) State() CacheState {
	if c.mega.Load() {
		return CacheMegamorphic
	}
	switch c.depth.Load() {
	case 0:
		return CacheEmpty
	case 1:
		return CacheMonomorphic
	}
	return CachePolymorphic
}

// Stats returns a snapshot of the chain's counters.
func (c *Chain[K, V]) Stats() Stats {
	return Stats{
		Name:      c.name,
		State:     c.State(),
		Depth:     int(c.depth.Load()),
		MaxDepth:  c.maxDepth,
		Stable:    c.stable.Load(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Fallbacks: c.fallbacks.Load(),
	}
}

// Reset drops every installed guard and clears the counters. Calls racing
// with Reset may still complete through the old chain.
func (c *Chain[K, V]) Reset() {
	c.root.reset()
	c.depth.Store(0)
	c.stable.Store(false)
	c.mega.Store(false)
	c.hits.Store(0)
	c.misses.Store(0)
	c.fallbacks.Store(0)
}
