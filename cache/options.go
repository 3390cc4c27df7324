package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/IvanBrykalov/loadcache/policy"
)

// Loader computes the value for k on a miss, after hard expiry, or when a
// stale entry is refreshed (unless a Reloader is set). It runs outside any
// shard lock and at most once at a time per key. Bounding its duration is the
// Loader's business: honour ctx or race a timer.
type Loader[K comparable, V any] func(ctx context.Context, k K) (V, error)

// Reloader computes a replacement for a stale value during refresh.
type Reloader[K comparable, V any] func(ctx context.Context, k K, old V) (V, error)

// RemovalListener is notified, asynchronously, for every entry that leaves
// the cache. Panics are recovered and logged.
//
// Notifications run on a single goroutine that Close waits for, so a
// listener must not call Close on its own cache directly: that call would
// wait for itself forever. Start it on a new goroutine instead.
type RemovalListener[K comparable, V any] func(k K, v V, cause RemovalCause)

// RemovalCause explains why an entry left the cache.
type RemovalCause uint8

const (
	// CauseExplicit: removed by Invalidate or InvalidateAll.
	CauseExplicit RemovalCause = iota
	// CauseReplaced: value overwritten by Put, a load, or a refresh.
	CauseReplaced
	// CauseExpired: found past ExpireAfterWrite.
	CauseExpired
	// CauseSize: evicted to stay within MaximumSize.
	CauseSize
)

func (c RemovalCause) String() string {
	switch c {
	case CauseExplicit:
		return "EXPLICIT"
	case CauseReplaced:
		return "REPLACED"
	case CauseExpired:
		return "EXPIRED"
	case CauseSize:
		return "SIZE"
	default:
		return "UNKNOWN"
	}
}

// WasEvicted reports whether the removal was automatic (expiry or size)
// rather than caused by the user.
func (c RemovalCause) WasEvicted() bool { return c == CauseExpired || c == CauseSize }

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// ObserveLoad is called after every Loader/Reloader call.
	ObserveLoad(d time.Duration, err error)
	// Refresh is called when a background refresh is started.
	Refresh()
	// Evict is called for every removal, labelled by cause.
	Evict(cause RemovalCause)
	Size(entries int)
}

// Clock returns nanoseconds on a monotonic scale; only differences matter.
// Useful for deterministic tests.
type Clock interface{ NowNanos() int64 }

// Options configures the cache. Zero values are safe; defaults are applied
// in New():
//   - ConcurrencyLevel 0 => auto (≈ 2*GOMAXPROCS), rounded to a power of two
//   - MaximumSize 0      => unbounded
//   - TTLs 0             => disabled
//   - nil Policy         => LRU
//   - nil Metrics        => NoopMetrics
//   - nil Clock          => monotonic wall clock
//   - nil Logger         => discard
type Options[K comparable, V any] struct {
	// ConcurrencyLevel is the expected number of concurrent writers; it sets
	// the shard count, rounded up to a power of two. Unlike builders that
	// require a value of at least 1, 0 is accepted and picks a shard count
	// from GOMAXPROCS. Negative values are rejected.
	ConcurrencyLevel int
	// InitialCapacity pre-sizes the shard tables (total across shards).
	InitialCapacity int
	// MaximumSize bounds the total entry count.
	MaximumSize int

	// ExpireAfterWrite: entries older than this are dropped and reloaded
	// synchronously on the next access.
	ExpireAfterWrite time.Duration
	// RefreshAfterWrite: entries older than this are served stale while a
	// single background refresh runs. Must be shorter than ExpireAfterWrite.
	RefreshAfterWrite time.Duration

	// RecordStats enables the counters returned by Stats().
	RecordStats bool

	Loader   Loader[K, V]
	Reloader Reloader[K, V] // optional; defaults to Loader

	RemovalListener RemovalListener[K, V]

	// Policy picks eviction candidates within a shard; nil => LRU.
	Policy policy.Policy[K, V]

	Metrics Metrics
	Clock   Clock
	Logger  *slog.Logger

	// CleanupInterval > 0 starts a janitor that drops expired entries
	// proactively. Expiry is otherwise discovered lazily on access.
	CleanupInterval time.Duration

	// Hasher maps keys to shards; nil => xxhash for common key types.
	Hasher func(K) uint64
}

// validate rejects configurations that can never behave as documented.
func (o *Options[K, V]) validate() error {
	switch {
	case o.ConcurrencyLevel < 0:
		return &ConfigError{Field: "ConcurrencyLevel", Reason: "must be >= 0"}
	case o.InitialCapacity < 0:
		return &ConfigError{Field: "InitialCapacity", Reason: "must be >= 0"}
	case o.MaximumSize < 0:
		return &ConfigError{Field: "MaximumSize", Reason: "must be >= 0"}
	case o.ExpireAfterWrite < 0:
		return &ConfigError{Field: "ExpireAfterWrite", Reason: "must be >= 0"}
	case o.RefreshAfterWrite < 0:
		return &ConfigError{Field: "RefreshAfterWrite", Reason: "must be >= 0"}
	case o.CleanupInterval < 0:
		return &ConfigError{Field: "CleanupInterval", Reason: "must be >= 0"}
	case o.RefreshAfterWrite > 0 && o.Loader == nil:
		return &ConfigError{Field: "RefreshAfterWrite", Reason: "requires a Loader"}
	case o.RefreshAfterWrite > 0 && o.ExpireAfterWrite > 0 && o.ExpireAfterWrite <= o.RefreshAfterWrite:
		// Entries would always expire before they could be refreshed.
		return &ConfigError{Field: "RefreshAfterWrite", Reason: "must be shorter than ExpireAfterWrite"}
	}
	return nil
}
