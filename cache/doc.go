// Package cache provides a generic, sharded, self-loading in-memory cache
// with write-based expiry and refresh, per-key single-flight loading,
// size-bounded eviction through pluggable policies, statistics, and
// asynchronous removal notifications.
//
// Design
//
//   - Concurrency: the cache is split into shards, each protected by an
//     RWMutex. The shard count follows Options.ConcurrencyLevel rounded up to
//     a power of two (auto when 0). Loader calls never run under a shard lock.
//
//   - Storage: each shard keeps a map[K]*node for lookups and an intrusive
//     MRU↔LRU doubly linked list for ordering. All operations are O(1) expected.
//
//   - Freshness: on every access the entry's age is classified once, from a
//     single clock reading, as fresh, stale or expired.
//     Fresh entries are returned. Stale entries (older than
//     RefreshAfterWrite) are returned while one background refresh runs.
//     Expired entries (older than ExpireAfterWrite) are dropped and loaded
//     synchronously.
//
//   - Loading: concurrent Get calls for the same key share one Loader call.
//     A failed load reaches every waiter as a *LoadError and is not cached.
//     A failed refresh keeps the old value; it only shows up in Stats and logs.
//
//   - Eviction: MaximumSize bounds the total entry count. When an insert
//     overflows it, the oldest policy candidate across shards is evicted.
//     Policies live in the policy package: LRU (default), FIFO, 2Q.
//
//   - Notifications: Options.RemovalListener receives (key, value, cause) on
//     a dedicated goroutine for every entry that leaves the cache, with cause
//     EXPLICIT, REPLACED, EXPIRED or SIZE. Listener panics are recovered.
//
//   - Metrics: Options.Metrics receives Hit/Miss/ObserveLoad/Refresh/Evict/Size
//     signals. By default NoopMetrics is used; see metrics/prom.
//
// Basic usage
//
//	c, err := cache.New(cache.Options[string, string]{
//	    MaximumSize:       10_000,
//	    ExpireAfterWrite:  10 * time.Minute,
//	    RefreshAfterWrite: time.Minute,
//	    RecordStats:       true,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return db.Lookup(ctx, k)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	v, err := c.Get(ctx, "key")
//
// Single-valued caches
//
//	cfg, _ := cache.NewSupplierCache(loadConfig, cache.Options[struct{}, *Config]{
//	    RefreshAfterWrite: 30 * time.Second,
//	})
//	current, err := cfg.Get(ctx)
//
// Using an alternative policy (2Q)
//
//	c := cache.MustNew(cache.Options[string, string]{
//	    MaximumSize: 50_000,
//	    Policy:      twoq.New[string, string](0.25, 0.5),
//	    Loader:      load,
//	})
package cache
