package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A mixed workload of concurrent Get/Put/Invalidate/Refresh on random keys
// with refresh, expiry and a tight size bound.
// Should pass under `-race` without detector reports.
func TestRace_Mixed(t *testing.T) {
	var evicted atomic.Int64
	c, err := New(Options[string, []byte]{
		ConcurrencyLevel:  32,
		MaximumSize:       4_096,
		ExpireAfterWrite:  40 * time.Millisecond,
		RefreshAfterWrite: 10 * time.Millisecond,
		CleanupInterval:   5 * time.Millisecond,
		RecordStats:       true,
		Loader: func(_ context.Context, k string) ([]byte, error) {
			return []byte(k), nil
		},
		RemovalListener: func(string, []byte, RemovalCause) { evicted.Add(1) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 50_000
	deadline := time.Now().Add(2 * time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch r.Intn(100) {
				case 0, 1, 2, 3, 4: // ~5%: Invalidate
					c.Invalidate(k)
				case 5: // ~1%: Refresh
					c.Refresh(ctx, k)
				case 6, 7, 8, 9, 10, 11, 12, 13, 14, 15: // ~10%: Put
					c.Put(k, []byte("x"))
				case 16, 17, 18, 19: // ~4%: GetIfPresent
					c.GetIfPresent(k)
				default: // ~80%: Get
					if _, err := c.Get(ctx, k); err != nil {
						t.Errorf("Get(%q): %v", k, err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 4_096)
	st := c.Stats()
	assert.Positive(t, st.HitCount)
	assert.Positive(t, st.MissCount)
}

// One hundred goroutines call Get on the same key concurrently.
// The Loader should run at most once (singleflight coalescing).
func TestRace_GetSameKey(t *testing.T) {
	var calls atomic.Int64

	c, err := New(Options[string, string]{
		Loader: func(_ context.Context, k string) (string, error) {
			calls.Add(1)
			time.Sleep(2 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	const goroutines = 100
	key := "same-key"

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := c.Get(context.Background(), key)
			if err != nil {
				t.Errorf("Get error: %v", err)
				return
			}
			if v != "v:"+key {
				t.Errorf("unexpected value: %q", v)
			}
		}()
	}

	close(start)
	wg.Wait()

	require.LessOrEqual(t, calls.Load(), int64(1), "loader should run at most once")

	// Subsequent call should be a pure cache hit.
	v, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "v:"+key, v)
}

// Concurrent inserts of distinct keys never leave more than MaximumSize
// entries behind, and every overflow produced exactly one SIZE removal.
func TestRace_SizeBoundUnderContention(t *testing.T) {
	const max = 256
	var sized atomic.Int64
	c, err := New(Options[int, int]{
		ConcurrencyLevel: 16,
		MaximumSize:      max,
		RemovalListener: func(_ int, _ int, cause RemovalCause) {
			if cause == CauseSize {
				sized.Add(1)
			}
		},
	})
	require.NoError(t, err)

	workers := 8
	perWorker := 1_000
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Put(base*perWorker+i, i)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, max, c.Len())
	require.NoError(t, c.Close())
	assert.EqualValues(t, workers*perWorker-max, sized.Load())
}
