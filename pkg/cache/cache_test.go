package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return clock }

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	clock = clock.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), time.Minute))
	clock = clock.Add(time.Second)
	_, err := mc.Get(ctx, "a") // a is now most recently used
	require.NoError(t, err)
	clock = clock.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = mc.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	v, err := mc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	clock = clock.Add(2 * time.Minute)
	_, err = mc.Get(ctx, "c")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheCopiesValue(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	buf := []byte("abc")
	require.NoError(t, mc.Set(ctx, "k", buf, 0))
	buf[0] = 'x'
	v, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestMemoryCacheLocks(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "k"))
	ok, _ = mc.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)

	// locks do not shadow data
	_, err = mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2)
	defer lc.Close()

	require.NoError(t, l2.Set(ctx, "k", []byte("v"), time.Hour))
	v, err := lc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	v, err = lc.l1.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	require.NoError(t, lc.Delete(ctx, "k"))
	_, err = lc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, SetJSON(ctx, mc, "k", map[string]int{"n": 3}, time.Minute))
	got, err := GetJSON[map[string]int](ctx, mc, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, got["n"])
	assert.Equal(t, "series:fred:GDP", Key("series", "", "fred", "GDP"))
}

func newTestRevalidator(store Service, clock *time.Time) *Revalidator {
	r := NewRevalidator(store, time.Hour, time.Hour)
	r.now = func() time.Time { return *clock }
	return r
}

func TestRevalidatorHitStaleMiss(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()
	clock := time.Now()
	r := newTestRevalidator(mc, &clock)

	var loads atomic.Int32
	load := func(context.Context) ([]byte, error) {
		n := loads.Add(1)
		return []byte(`{"n":` + string(rune('0'+n)) + `}`), nil
	}

	body, status, err := r.Get(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.JSONEq(t, `{"n":1}`, string(body))

	body, status, _ = r.Get(ctx, "k", load)
	assert.Equal(t, StatusHit, status)
	assert.JSONEq(t, `{"n":1}`, string(body))

	clock = clock.Add(90 * time.Minute)
	body, status, _ = r.Get(ctx, "k", load)
	assert.Equal(t, StatusStale, status)
	assert.JSONEq(t, `{"n":1}`, string(body))
	r.Wait()
	assert.Equal(t, int32(2), loads.Load())

	body, status, _ = r.Get(ctx, "k", load)
	assert.Equal(t, StatusHit, status)
	assert.JSONEq(t, `{"n":2}`, string(body))

	clock = clock.Add(3 * time.Hour)
	_, status, _ = r.Get(ctx, "k", load)
	assert.Equal(t, StatusMiss, status)
}

func TestRevalidatorDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()
	clock := time.Now()
	r := newTestRevalidator(mc, &clock)

	boom := errors.New("upstream down")
	_, status, err := r.Get(ctx, "k", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusMiss, status)

	_, err = mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRevalidatorSkipsRefreshWhileLocked(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()
	clock := time.Now()
	r := newTestRevalidator(mc, &clock)

	_, _, err := r.Get(ctx, "k", func(context.Context) ([]byte, error) { return []byte(`1`), nil })
	require.NoError(t, err)

	ok, _ := mc.TryLock(ctx, "k", time.Minute)
	require.True(t, ok)

	clock = clock.Add(90 * time.Minute)
	called := false
	_, status, _ := r.Get(ctx, "k", func(context.Context) ([]byte, error) { called = true; return []byte(`2`), nil })
	r.Wait()
	assert.Equal(t, StatusStale, status)
	assert.False(t, called)
}
