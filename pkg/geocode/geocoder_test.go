package geocode

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeocoder(t *testing.T, p Provider, opts ...Option) *Geocoder {
	t.Helper()
	base := []Option{
		WithEnabled(true),
		WithRate(0),
		WithProvider(p),
		WithCache(NewCache(filepath.Join(t.TempDir(), "cache.json"))),
	}
	return New(append(base, opts...)...)
}

func TestLookup_CachesSuccess(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{answers: map[string]*Point{"Oslo, Norway": {59.91, 10.75}}}
	g := newTestGeocoder(t, p)

	got := g.Lookup(context.Background(), "Oslo, Norway")
	require.NotNil(t, got)
	assert.Equal(t, Point{59.91, 10.75}, *got)

	again := g.Lookup(context.Background(), "oslo,  norway")
	require.NotNil(t, again)
	assert.Len(t, p.calls(), 1)

	st := g.Stats()
	assert.Equal(t, int64(1), st.Calls)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, 1, st.CacheEntries)
}

func TestLookup_CacheHitSkipsDelayAndBudget(t *testing.T) {
	t.Parallel()

	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"))
	cache.Put(Key("nominatim", "Bergen, Norway"), Point{60.39, 5.32})

	p := &fakeProvider{}
	g := New(WithEnabled(true), WithRate(time.Second), WithMaxCalls(0), WithProvider(p), WithCache(cache))

	start := time.Now()
	for range 5 {
		require.NotNil(t, g.Lookup(context.Background(), "Bergen, Norway"))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Empty(t, p.calls())
	assert.Equal(t, int64(0), g.Stats().Calls)
	assert.Equal(t, int64(0), g.Stats().BudgetSkips)
}

func TestLookup_BudgetExhausted(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{answers: map[string]*Point{}}
	g := newTestGeocoder(t, p, WithMaxCalls(2))

	assert.Nil(t, g.Lookup(context.Background(), "a"))
	assert.Nil(t, g.Lookup(context.Background(), "b"))
	assert.Nil(t, g.Lookup(context.Background(), "c"))
	assert.Nil(t, g.Lookup(context.Background(), "d"))

	assert.Equal(t, []string{"a", "b"}, p.calls())
	assert.Equal(t, int64(2), g.Stats().BudgetSkips)
}

func TestLookup_NoNegativeCaching(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: errors.New("503 from provider")}
	g := newTestGeocoder(t, p)

	assert.Nil(t, g.Lookup(context.Background(), "Hamar, Norway"))
	assert.Nil(t, g.Lookup(context.Background(), "Hamar, Norway"))
	assert.Len(t, p.calls(), 2)
	assert.Equal(t, 0, g.Stats().CacheEntries)
	assert.Equal(t, int64(2), g.Stats().Misses)
}

func TestLookup_RejectsNonFinite(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{answers: map[string]*Point{"x": {math.NaN(), 1}}}
	g := newTestGeocoder(t, p)

	assert.Nil(t, g.Lookup(context.Background(), "x"))
	assert.Equal(t, 0, g.Stats().CacheEntries)
}

func TestLookup_SerializesAndSpacesCalls(t *testing.T) {
	t.Parallel()

	answers := map[string]*Point{}
	queries := []string{"q1", "q2", "q3", "q4"}
	for i, q := range queries {
		answers[q] = &Point{float64(i), float64(i)}
	}
	p := &fakeProvider{answers: answers, delay: 5 * time.Millisecond}
	g := newTestGeocoder(t, p, WithRate(30*time.Millisecond))

	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, g.Lookup(context.Background(), q))
		}()
	}
	wg.Wait()

	assert.False(t, p.overlap.Load(), "provider saw overlapping calls")
	starts := p.starts()
	require.Len(t, starts, 4)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), 30*time.Millisecond)
	}
}

func TestLookup_ConcurrentSameQueryCallsOnce(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{answers: map[string]*Point{"Bodø, Norway": {67.28, 14.40}}, delay: 10 * time.Millisecond}
	g := newTestGeocoder(t, p)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, g.Lookup(context.Background(), "Bodø, Norway"))
		}()
	}
	wg.Wait()
	assert.Len(t, p.calls(), 1)
}

func TestLookup_CancelledWhileWaitingForGate(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{answers: map[string]*Point{}}
	g := newTestGeocoder(t, p)
	g.gate <- struct{}{} // hold the gate

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Nil(t, g.Lookup(ctx, "Molde, Norway"))
	assert.Empty(t, p.calls())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("first successful query wins", func(t *testing.T) {
		t.Parallel()
		p := &fakeProvider{answers: map[string]*Point{"4600 Kristiansand, Norway": {58.14, 7.99}}}
		g := newTestGeocoder(t, p)

		got := g.Resolve(context.Background(), "Storgata 1, 4600 Kristiansand", "kristiansand", "agder")
		require.NotNil(t, got)
		assert.Equal(t, Point{58.14, 7.99}, *got)
		assert.Equal(t, []string{
			"Storgata 1, 4600 Kristiansand, Norway",
			"Storgata 1, 4600 Kristiansand, Agder, Norway",
			"4600 Kristiansand, Norway",
		}, p.calls())
	})

	t.Run("disabled makes no calls", func(t *testing.T) {
		t.Parallel()
		p := &fakeProvider{}
		g := newTestGeocoder(t, p, WithEnabled(false))
		assert.False(t, g.Enabled())
		assert.Nil(t, g.Resolve(context.Background(), "Storgata 1, 4600 Kristiansand", "kristiansand", "agder"))
		assert.Empty(t, p.calls())
	})

	t.Run("empty address makes no calls", func(t *testing.T) {
		t.Parallel()
		p := &fakeProvider{}
		g := newTestGeocoder(t, p)
		assert.Nil(t, g.Resolve(context.Background(), " ", "kristiansand", "agder"))
		assert.Empty(t, p.calls())
	})

	t.Run("all queries miss", func(t *testing.T) {
		t.Parallel()
		p := &fakeProvider{answers: map[string]*Point{}}
		g := newTestGeocoder(t, p)
		assert.Nil(t, g.Resolve(context.Background(), "Storgata 1, 4600 Kristiansand", "kristiansand", "agder"))
		assert.Len(t, p.calls(), 5)
	})
}

func TestGeocoder_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "geocode-cache.json")
	p := &fakeProvider{answers: map[string]*Point{"Oslo, Norway": {59.91, 10.75}}}
	g := New(WithEnabled(true), WithRate(0), WithProvider(p), WithCache(NewCache(path)))
	assert.Equal(t, 0, g.Load())
	require.NotNil(t, g.Lookup(context.Background(), "Oslo, Norway"))
	require.NoError(t, g.Save())

	fresh := New(WithProvider(p), WithCache(NewCache(path)))
	assert.Equal(t, 1, fresh.Load())
	got, ok := fresh.cache.Get("nominatim:oslo, norway")
	require.True(t, ok)
	assert.Equal(t, Point{59.91, 10.75}, got)
}
