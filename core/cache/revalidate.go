package cache

import (
	"context"
	"time"
)

// Revalidating serves stale values while refreshing them in the background.
//
// An entry younger than staleFraction*ttl is fresh. An older, unexpired entry is returned as is and a
// refresh is handed to the Refresher. Expired or missing entries block the caller on compute.
type Revalidating[V any] struct {
	*Namespace[V]
	staleFraction float64
	refresher     *Refresher
}

func NewRevalidating[V any](reg *Registry, name string, ttl time.Duration, staleFraction float64, refresher *Refresher) *Revalidating[V] {
	if staleFraction <= 0 || staleFraction > 1 {
		staleFraction = 1
	}
	return &Revalidating[V]{
		Namespace:     NewNamespace[V](reg, name, ttl),
		staleFraction: staleFraction,
		refresher:     refresher,
	}
}

func (r *Revalidating[V]) staleAfter() time.Duration {
	return time.Duration(float64(r.ttl) * r.staleFraction)
}

func (r *Revalidating[V]) Get(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	if ent, ok := r.reg.lookup(r.name, key); ok {
		if v, ok := ent.value.(V); ok {
			if ent.age(r.reg.clock.Now()) >= r.staleAfter() {
				r.revalidate(key, compute)
			}
			return v, nil
		}
	}
	return r.load(ctx, key, compute)
}

func (r *Revalidating[V]) revalidate(key string, compute func(ctx context.Context) (V, error)) {
	if r.refresher == nil {
		return
	}
	r.refresher.Submit(Task{
		Key: r.name + ":" + key,
		Run: func(ctx context.Context) error {
			_, err, _ := r.reg.flights.Do(flightKey(r.name, key), func() (interface{}, error) {
				v, err := compute(ctx)
				if err != nil {
					return nil, err
				}
				r.Set(key, v, r.ttl)
				return v, nil
			})
			return err
		},
	})
}
