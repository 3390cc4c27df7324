package prom

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/loadcache/cache"
)

func TestAdapter_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "test", "cache", prometheus.Labels{"name": "unit"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Refresh()
	a.Evict(cache.CauseSize)
	a.Evict(cache.CauseSize)
	a.Evict(cache.CauseExpired)
	a.Size(42)
	a.ObserveLoad(time.Millisecond, nil)
	a.ObserveLoad(time.Millisecond, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(a.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.refreshes))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.removals.WithLabelValues("size")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.removals.WithLabelValues("expired")))
	assert.Equal(t, 42.0, testutil.ToFloat64(a.sizeEnt))
	assert.Equal(t, 2, testutil.CollectAndCount(a.loads))
}

func TestAdapter_WiredIntoCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test", "wired", nil)

	c, err := cache.New(cache.Options[string, int]{
		MaximumSize: 1,
		Metrics:     m,
		Loader: func(_ context.Context, k string) (int, error) {
			return len(k), nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, err = c.Get(ctx, "a")
	require.NoError(t, err)
	_, err = c.Get(ctx, "a")
	require.NoError(t, err)
	_, err = c.Get(ctx, "bb")
	require.NoError(t, err)

	expected := `
# HELP test_wired_hits_total Cache hits, stale reads included
# TYPE test_wired_hits_total counter
test_wired_hits_total 1
# HELP test_wired_misses_total Cache misses, expired reads included
# TYPE test_wired_misses_total counter
test_wired_misses_total 2
# HELP test_wired_removals_total Entries removed from the cache by cause
# TYPE test_wired_removals_total counter
test_wired_removals_total{cause="size"} 1
# HELP test_wired_size_entries Number of resident entries
# TYPE test_wired_size_entries gauge
test_wired_size_entries 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_wired_hits_total", "test_wired_misses_total",
		"test_wired_removals_total", "test_wired_size_entries"))
}
