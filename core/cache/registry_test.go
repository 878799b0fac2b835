package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

func newTestRegistry() (*Registry, *ManualClock) {
	clock := NewManualClock(epoch)
	return NewRegistry(clock), clock
}

func TestNamespace_roundTrip(t *testing.T) {
	reg, _ := newTestRegistry()
	depts := NewNamespace[[]string](reg, Departments, 15*time.Minute)

	depts.Set("all", []string{"CS", "EE"}, 0)

	got, ok := depts.Get("all")
	require.True(t, ok)
	assert.Equal(t, []string{"CS", "EE"}, got)
}

func TestNamespace_expiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		gets    int
		wantHit bool
	}{
		{name: "just stored", elapsed: 0, wantHit: true},
		{name: "at ttl", elapsed: 900 * time.Second, wantHit: true},
		{name: "one ms past ttl", elapsed: 900001 * time.Millisecond, wantHit: false},
		{name: "past ttl after many reads", elapsed: time.Hour, gets: 10, wantHit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, clock := newTestRegistry()
			depts := NewNamespace[[]string](reg, Departments, 900*time.Second)
			depts.Set("all", []string{"CS"}, 0)

			step := tt.elapsed
			if tt.gets > 0 {
				step = tt.elapsed / time.Duration(tt.gets)
			}
			for i := 0; i < tt.gets; i++ {
				clock.Advance(step)
				_, _ = depts.Get("all")
			}
			if tt.gets == 0 {
				clock.Advance(tt.elapsed)
			}

			if _, ok := depts.Get("all"); ok != tt.wantHit {
				t.Errorf("Get() hit = %v; want %v", ok, tt.wantHit)
			}
		})
	}
}

func TestNamespace_nonPositiveTTLStoresNothing(t *testing.T) {
	reg, _ := newTestRegistry()
	ns := NewNamespace[int](reg, "numbers", -time.Second)

	ns.Set("a", 1, 0)
	ns.Set("b", 2, -time.Minute)

	_, ok := ns.Get("a")
	assert.False(t, ok)
	_, ok = ns.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Stats("numbers").Size)
}

func TestRegistry_Invalidate(t *testing.T) {
	reg, _ := newTestRegistry()
	students := NewNamespace[string](reg, Students, time.Hour)
	depts := NewNamespace[string](reg, Departments, time.Hour)
	for _, key := range []string{"a", "b", "c"} {
		students.Set(key, key, 0)
		depts.Set(key, key, 0)
	}

	reg.Invalidate(Students, "a")
	_, ok := students.Get("a")
	assert.False(t, ok, "invalidated key must miss")
	_, ok = students.Get("b")
	assert.True(t, ok)

	students.Invalidate()
	assert.Equal(t, 0, reg.Stats(Students).Size)
	assert.Equal(t, 3, reg.Stats(Departments).Size, "other namespaces are untouched")

	reg.InvalidateAll()
	assert.Equal(t, 0, reg.Stats(Departments).Size)

	// unknown namespaces are ignored
	reg.Invalidate("nope", "x")
}

func TestRegistry_Stats(t *testing.T) {
	reg, clock := newTestRegistry()
	short := NewNamespace[int](reg, "short", time.Minute)
	long := NewNamespace[int](reg, "long", time.Hour)
	NewNamespace[int](reg, "empty", time.Hour)

	short.Set("z", 1, 0)
	short.Set("a", 2, 0)
	long.Set("k", 3, 0)
	clock.Advance(30 * time.Second)
	short.Set("m", 4, 0)
	clock.Advance(31 * time.Second)

	want := []Stats{
		{Namespace: "empty", Size: 0, Keys: []string{}},
		{Namespace: "long", Size: 1, Keys: []string{"k"}},
		{Namespace: "short", Size: 1, Keys: []string{"m"}},
	}
	if diff := cmp.Diff(want, reg.AllStats()); diff != "" {
		t.Errorf("AllStats() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"empty", "long", "short"}, reg.Namespaces())
	assert.True(t, reg.Has("short"))
	assert.False(t, reg.Has("nope"))
}

func TestRegistry_Sweep(t *testing.T) {
	reg, clock := newTestRegistry()
	ns := NewNamespace[int](reg, "numbers", time.Minute)
	ns.Set("old", 1, 0)
	ns.Set("older", 2, 30*time.Second)
	clock.Advance(45 * time.Second)
	ns.Set("new", 3, 0)
	clock.Advance(20 * time.Second)

	assert.Equal(t, 2, reg.Sweep())
	assert.Equal(t, []string{"new"}, reg.Stats("numbers").Keys)
	assert.Equal(t, 0, reg.Sweep())
}

func TestNamespace_GetOrLoad(t *testing.T) {
	reg, clock := newTestRegistry()
	ns := NewNamespace[string](reg, StudentDetail, time.Minute)
	ctx := context.Background()

	var calls int
	load := func(context.Context) (string, error) {
		calls++
		return "v" + string(rune('0'+calls)), nil
	}

	v, err := ns.GetOrLoad(ctx, "s1", load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = ns.GetOrLoad(ctx, "s1", load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v, "second call is served from cache")

	clock.Advance(time.Minute + time.Millisecond)
	v, err = ns.GetOrLoad(ctx, "s1", load)
	require.NoError(t, err)
	assert.Equal(t, "v2", v, "expired entry is reloaded")
	assert.Equal(t, 2, calls)
}

func TestNamespace_GetOrLoad_errorIsNotCached(t *testing.T) {
	reg, _ := newTestRegistry()
	ns := NewNamespace[int](reg, "numbers", time.Minute)
	ctx := context.Background()
	errBoom := errors.New("boom")

	_, err := ns.GetOrLoad(ctx, "k", func(context.Context) (int, error) { return 0, errBoom })
	assert.ErrorIs(t, err, errBoom)
	_, ok := ns.Get("k")
	assert.False(t, ok, "failed load must not populate the cache")

	v, err := ns.GetOrLoad(ctx, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNamespace_GetOrLoad_dedup(t *testing.T) {
	reg, _ := newTestRegistry()
	ns := NewNamespace[[]int](reg, "numbers", time.Minute)
	ctx := context.Background()

	const callers = 20
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, callers)

	load := func(context.Context) ([]int, error) {
		calls.Add(1)
		<-release
		return []int{1, 2, 3}, nil
	}

	var wg sync.WaitGroup
	results := make([][]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			v, err := ns.GetOrLoad(ctx, "k", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	// let every caller reach the flight before releasing the load
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, []int{1, 2, 3}, v)
	}
}

func TestNamespace_GetOrLoad_callerCancel(t *testing.T) {
	reg, _ := newTestRegistry()
	ns := NewNamespace[int](reg, "numbers", time.Minute)
	release := make(chan struct{})
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		_, _ = ns.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
			<-release
			return 42, nil
		})
	}()

	cancel()
	_, err := ns.GetOrLoad(ctx, "k", func(context.Context) (int, error) {
		<-release
		return 42, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
	v, ok := ns.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}
