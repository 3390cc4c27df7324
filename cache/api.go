package cache

import "context"

// LoadingCache is a sharded, in-memory, self-loading key/value cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Typical complexity for operations is amortized O(1): a map lookup plus
// constant-time list adjustments under a shard lock. Loader calls never run
// under a shard lock.
type LoadingCache[K comparable, V any] interface {
	// Get returns the value for k, loading it via Options.Loader if it is
	// absent or expired. Concurrent callers for the same key share one load;
	// a failed load is returned to each of them as a *LoadError and is not
	// cached. A stale entry is returned immediately while one background
	// refresh runs. Without a Loader, a miss returns ErrNoLoader; after Close,
	// Get returns ErrClosed.
	Get(ctx context.Context, k K) (V, error)

	// GetIfPresent returns the cached value for k without loading or
	// refreshing. Expired entries are dropped and reported absent.
	GetIfPresent(k K) (V, bool)

	// GetEntryIfPresent returns a copy of the entry for k, including its
	// write time and load state. It has no side effects on stats or order.
	GetEntryIfPresent(k K) (Entry[K, V], bool)

	// Put stores k→v unconditionally, resetting its write time. Overwriting
	// notifies the RemovalListener with CauseReplaced.
	Put(k K, v V)

	// Refresh reloads k in the background. The current value, if any, keeps
	// being served until the reload succeeds. No-op if a load or refresh for
	// k is already running, or if no Loader was configured.
	Refresh(ctx context.Context, k K)

	// Invalidate removes k if present. Absent keys are a no-op.
	Invalidate(k K)

	// InvalidateAll removes every entry, shard by shard. It is not atomic
	// with respect to concurrent writers.
	InvalidateAll()

	// Stats returns a snapshot of the counters (all zero unless
	// Options.RecordStats).
	Stats() Stats

	// Len returns the total number of resident entries across all shards.
	Len() int

	// CleanUp drops expired entries now instead of waiting for an access.
	CleanUp()

	// Close stops the janitor, delivers pending removal notifications and
	// marks the cache closed. Later writes are ignored and Get returns
	// ErrClosed. Close waits for the RemovalListener, so calling it from
	// inside the listener deadlocks; use a new goroutine there.
	Close() error
}
