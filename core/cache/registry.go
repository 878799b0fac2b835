// Package cache holds the in-process caches used in front of the repositories.
//
// A Registry owns every namespace; Namespace and Revalidating give typed access to one of them.
// Entries expire lazily: a read after storedAt+ttl is a miss. Invalidation is namespace- or
// key-scoped and concurrent writers on the same key follow last-write-wins.
package cache

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.storedAt.Add(e.ttl))
}

func (e entry) age(now time.Time) time.Duration {
	return now.Sub(e.storedAt)
}

// Stats describes the live (non expired) keys of a namespace.
type Stats struct {
	Namespace string   `json:"namespace"`
	Size      int      `json:"size"`
	Keys      []string `json:"keys"`
}

type Registry struct {
	clock Clock

	mu     sync.RWMutex
	spaces map[string]map[string]entry

	flights singleflight.Group
}

func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock
	}
	return &Registry{
		clock:  clock,
		spaces: make(map[string]map[string]entry),
	}
}

func (r *Registry) Clock() Clock { return r.clock }

// register makes an (empty) namespace visible to Stats & Namespaces.
func (r *Registry) register(ns string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spaces[ns]; !ok {
		r.spaces[ns] = make(map[string]entry)
	}
}

// lookup returns the entry stored under (ns, key) unless it is missing or expired.
func (r *Registry) lookup(ns, key string) (entry, bool) {
	now := r.clock.Now()

	r.mu.RLock()
	ent, ok := r.spaces[ns][key]
	r.mu.RUnlock()
	if !ok {
		return entry{}, false
	}
	if ent.expired(now) {
		r.mu.Lock()
		// only drop it if nobody replaced it meanwhile
		if cur, ok := r.spaces[ns][key]; ok && cur.storedAt.Equal(ent.storedAt) {
			delete(r.spaces[ns], key)
		}
		r.mu.Unlock()
		return entry{}, false
	}
	return ent, true
}

// store replaces the whole entry. A non-positive ttl stores nothing.
func (r *Registry) store(ns, key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ent := entry{value: value, storedAt: r.clock.Now(), ttl: ttl}

	r.mu.Lock()
	defer r.mu.Unlock()
	space, ok := r.spaces[ns]
	if !ok {
		space = make(map[string]entry)
		r.spaces[ns] = space
	}
	space[key] = ent
}

// Invalidate drops the given keys of namespace ns, or all of its entries when no key is given.
func (r *Registry) Invalidate(ns string, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	space, ok := r.spaces[ns]
	if !ok {
		return
	}
	if len(keys) == 0 {
		r.spaces[ns] = make(map[string]entry)
		return
	}
	for _, key := range keys {
		delete(space, key)
	}
}

func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ns := range r.spaces {
		r.spaces[ns] = make(map[string]entry)
	}
}

// Has reports whether ns is a known namespace.
func (r *Registry) Has(ns string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.spaces[ns]
	return ok
}

func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.spaces))
	for ns := range r.spaces {
		names = append(names, ns)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) Stats(ns string) Stats {
	now := r.clock.Now()
	stats := Stats{Namespace: ns, Keys: []string{}}

	r.mu.RLock()
	for key, ent := range r.spaces[ns] {
		if !ent.expired(now) {
			stats.Keys = append(stats.Keys, key)
		}
	}
	r.mu.RUnlock()

	sort.Strings(stats.Keys)
	stats.Size = len(stats.Keys)
	return stats
}

func (r *Registry) AllStats() []Stats {
	names := r.Namespaces()
	all := make([]Stats, 0, len(names))
	for _, ns := range names {
		all = append(all, r.Stats(ns))
	}
	return all
}

// Sweep drops every expired entry and returns how many were dropped.
func (r *Registry) Sweep() int {
	now := r.clock.Now()
	var dropped int

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, space := range r.spaces {
		for key, ent := range space {
			if ent.expired(now) {
				delete(space, key)
				dropped++
			}
		}
	}
	return dropped
}

func flightKey(ns, key string) string {
	return ns + "\x00" + key
}
