package callsite

// CacheState represents the current state of a guard chain.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No guard installed yet
	CacheMonomorphic                   // One guard
	CachePolymorphic                   // Two or more guards
	CacheMegamorphic                   // Root rewritten to the stable fallback
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	}
	return "unknown"
}

// Stats is a point-in-time view of a chain's counters.
type Stats struct {
	Name     string
	State    CacheState
	Depth    int  // Guards installed along the longest path
	MaxDepth int  // Depth bound, 0 if unbounded
	Stable   bool // Root no longer grows (megamorphic or saturated)

	Hits      uint64 // Calls answered by a guard
	Misses    uint64 // Calls that went through the miss handler
	Fallbacks uint64 // Calls answered by a stable root target
}

// HitRate returns the guard hit rate as a percentage (0-100).
// Calls served by a stable root count as neither hits nor misses.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}
