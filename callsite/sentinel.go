// Package callsite implements self-rewriting inline caches.
//
// A Chain is a linked series of nodes, each holding an atomically swappable
// dispatch target. A node starts out pointing at its miss handler. On a miss
// the handler resolves the key, installs a guard specialized to that key in
// front of a fresh node one level deeper, and returns the resolved value. Once
// the chain reaches its depth bound the root is rewritten to a stable
// megamorphic target and stops growing.
//
// Based on Cog VM's observation that most call sites see one or two receiver
// kinds, so a short chain of exact guards beats a hash lookup until the site
// turns megamorphic.
package callsite

// Sentinel indices shared by the switch dispatchers. Neither is a valid case
// index, so callers can switch on the result directly.
const (
	NullMatch = -1 // nil input matched the null case
	NoMatch   = -2 // no case applies
)
