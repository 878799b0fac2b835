package cache

import (
	"context"
	"time"
)

// Namespace is a typed view over one namespace of a Registry.
type Namespace[V any] struct {
	reg  *Registry
	name string
	ttl  time.Duration
}

func NewNamespace[V any](reg *Registry, name string, ttl time.Duration) *Namespace[V] {
	reg.register(name)
	return &Namespace[V]{reg: reg, name: name, ttl: ttl}
}

func (n *Namespace[V]) Name() string       { return n.name }
func (n *Namespace[V]) TTL() time.Duration { return n.ttl }

func (n *Namespace[V]) Get(key string) (V, bool) {
	var zero V
	ent, ok := n.reg.lookup(n.name, key)
	if !ok {
		return zero, false
	}
	v, ok := ent.value.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores v under key. A ttl of 0 uses the namespace default; a negative ttl stores nothing.
func (n *Namespace[V]) Set(key string, v V, ttl time.Duration) {
	if ttl == 0 {
		ttl = n.ttl
	}
	n.reg.store(n.name, key, v, ttl)
}

func (n *Namespace[V]) Invalidate(keys ...string) {
	n.reg.Invalidate(n.name, keys...)
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Concurrent misses on the same key share a single load. Errors are returned to every waiting caller
// and nothing is cached.
func (n *Namespace[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := n.Get(key); ok {
		return v, nil
	}
	return n.load(ctx, key, load)
}

func (n *Namespace[V]) load(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	// the shared load must survive the caller that happened to start it
	loadCtx := context.WithoutCancel(ctx)
	ch := n.reg.flights.DoChan(flightKey(n.name, key), func() (interface{}, error) {
		if v, ok := n.Get(key); ok {
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		n.Set(key, v, n.ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}
