// Package profile keeps a registry of live call sites and records their
// cache statistics as snapshots that can be stored and compared later.
package profile

import (
	"sort"
	"sync"
	"time"

	"github.com/chazu/exotic/callsite"
	"github.com/google/uuid"
)

// Source is anything that reports call-site statistics: type and string
// switches, structural calls, memoizers and visitors.
type Source interface {
	Stats() callsite.Stats
}

// Profiler tracks call sites by id.
type Profiler struct {
	sites sync.Map // id -> *site
}

type site struct {
	id   string
	name string
	src  Source
}

// NewProfiler creates an empty profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// Track registers src under a fresh id, which it returns. An empty name
// falls back to the name the source reports.
func (p *Profiler) Track(name string, src Source) string {
	if name == "" {
		name = src.Stats().Name
	}
	id := name + "_" + uuid.New().String()
	p.sites.Store(id, &site{id: id, name: name, src: src})
	return id
}

// Untrack removes a site. It reports whether the id was tracked.
func (p *Profiler) Untrack(id string) bool {
	_, ok := p.sites.LoadAndDelete(id)
	return ok
}

// Len returns the number of tracked sites.
func (p *Profiler) Len() int {
	n := 0
	p.sites.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Site returns the current profile of one site.
func (p *Profiler) Site(id string) (SiteProfile, bool) {
	v, ok := p.sites.Load(id)
	if !ok {
		return SiteProfile{}, false
	}
	return v.(*site).profile(), true
}

func (s *site) profile() SiteProfile {
	st := s.src.Stats()
	return SiteProfile{
		ID:        s.id,
		Name:      s.name,
		State:     st.State,
		Depth:     st.Depth,
		MaxDepth:  st.MaxDepth,
		Stable:    st.Stable,
		Hits:      st.Hits,
		Misses:    st.Misses,
		Fallbacks: st.Fallbacks,
	}
}

// Snapshot reads every tracked site, ordered by name and then id.
func (p *Profiler) Snapshot() *Snapshot {
	snap := &Snapshot{Version: SnapshotVersion, TakenUnixNano: time.Now().UnixNano()}
	p.sites.Range(func(_, v any) bool {
		snap.Sites = append(snap.Sites, v.(*site).profile())
		return true
	})
	sort.Slice(snap.Sites, func(i, j int) bool {
		a, b := snap.Sites[i], snap.Sites[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return snap
}

// Megamorphic returns the sites that have given up on guards.
func (p *Profiler) Megamorphic() []SiteProfile {
	var out []SiteProfile
	for _, s := range p.Snapshot().Sites {
		if s.State == callsite.CacheMegamorphic {
			out = append(out, s)
		}
	}
	return out
}

// Top returns the n busiest sites by total calls.
func (p *Profiler) Top(n int) []SiteProfile {
	all := p.Snapshot().Sites
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Calls() > all[j].Calls()
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}
