package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/loadcache/internal/singleflight"
	"github.com/IvanBrykalov/loadcache/internal/util"
	"github.com/IvanBrykalov/loadcache/policy/lru"
)

// cache is a sharded in-memory loading cache with a pluggable eviction policy.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt     Options[K, V]
	ttl     ttls
	clock   Clock
	metrics Metrics
	log     *slog.Logger

	// ticket hands out list stamps and entry versions; size counts resident
	// entries across all shards. Both are shared with every shard.
	ticket atomic.Uint64
	size   atomic.Int64

	// flights coalesces loads and refreshes per key.
	flights singleflight.Group[K, V]

	// listener is nil when no RemovalListener was configured.
	listener *dispatcher[K, V]

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New constructs a cache with the provided Options.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Policy   -> LRU
//   - nil Clock    -> monotonic clock
//   - nil Logger   -> discard
//   - ConcurrencyLevel 0 -> auto, rounded up to the next power of two
//
// Invalid options are reported as a *ConfigError.
func New[K comparable, V any](opt Options[K, V]) (LoadingCache[K, V], error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}
	if opt.Clock == nil {
		opt.Clock = newMonoClock()
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	sh := util.ShardCount(opt.ConcurrencyLevel)
	if opt.Hasher == nil {
		if sh > 1 && !defaultHashable[K]() {
			var zero K
			return nil, &ConfigError{Field: "Hasher", Reason: fmt.Sprintf("required for key type %T", zero)}
		}
		opt.Hasher = util.Hash[K]
	}

	c := &cache[K, V]{
		hash:    opt.Hasher,
		opt:     opt,
		ttl:     newTTLs(opt.ExpireAfterWrite, opt.RefreshAfterWrite),
		clock:   opt.Clock,
		metrics: opt.Metrics,
		log:     opt.Logger,
		stop:    make(chan struct{}),
	}

	perShardCap := util.SplitCeil(opt.MaximumSize, sh)
	perShardInit := util.SplitCeil(opt.InitialCapacity, sh)
	c.shards = make([]*shard[K, V], sh)
	for i := range c.shards {
		c.shards[i] = newShard[K, V](perShardInit, perShardCap, opt.Policy, c.ttl, &c.ticket, &c.size)
	}

	if opt.RemovalListener != nil {
		c.listener = newDispatcher(opt.RemovalListener, c.log)
	}
	if opt.CleanupInterval > 0 && c.ttl.expires() {
		c.wg.Add(1)
		go c.janitor(opt.CleanupInterval)
	}

	c.log.Debug("cache created",
		slog.Int("shards", sh),
		slog.Int("maximum_size", opt.MaximumSize),
		slog.String("policy", opt.Policy.Name()),
		slog.Duration("expire_after_write", opt.ExpireAfterWrite),
		slog.Duration("refresh_after_write", opt.RefreshAfterWrite))
	return c, nil
}

// MustNew is like New but panics on invalid options.
func MustNew[K comparable, V any](opt Options[K, V]) LoadingCache[K, V] {
	c, err := New(opt)
	if err != nil {
		panic(err)
	}
	return c
}

// ---- LoadingCache[K,V] implementation ----

// Get returns the value for k. A fresh entry is returned as is; a stale one
// is returned as is while a single background refresh is scheduled; an
// expired or absent one is loaded, with concurrent callers sharing the load.
func (c *cache[K, V]) Get(ctx context.Context, k K) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	s := c.getShard(k)

	// One clock read per access: both TTL comparisons see the same "now".
	e, ok, rm, dropped := s.access(k, c.clock.NowNanos())
	if dropped {
		c.removed(rm)
	}
	if ok {
		c.recordHit(s)
		if e.state == stale {
			c.scheduleRefresh(ctx, s, k, e.version, e.val)
		}
		return e.val, nil
	}

	c.recordMiss(s)
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}
	return c.load(ctx, s, k)
}

// GetIfPresent returns the cached value without loading or refreshing.
func (c *cache[K, V]) GetIfPresent(k K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	s := c.getShard(k)
	e, ok, rm, dropped := s.access(k, c.clock.NowNanos())
	if dropped {
		c.removed(rm)
	}
	if !ok {
		c.recordMiss(s)
		return zero, false
	}
	c.recordHit(s)
	return e.val, true
}

// GetEntryIfPresent returns a copy of the entry for k. It neither promotes
// the entry nor counts a hit or miss.
func (c *cache[K, V]) GetEntryIfPresent(k K) (Entry[K, V], bool) {
	if c.closed.Load() {
		return Entry[K, V]{}, false
	}
	e, ok := c.getShard(k).peek(k, c.clock.NowNanos())
	if !ok {
		return Entry[K, V]{}, false
	}
	out := Entry[K, V]{Key: k, Value: e.val, WriteTime: e.written, State: StateLoaded}
	if kind, busy := c.flights.InFlight(k); busy {
		if kind == singleflight.Refresh {
			out.State = StateRefreshing
		} else {
			out.State = StateLoading
		}
	}
	return out, true
}

// Put inserts or overwrites k→v and resets its write time.
func (c *cache[K, V]) Put(k K, v V) {
	if c.closed.Load() {
		return
	}
	c.store(c.getShard(k), k, v)
}

// Refresh reloads k in the background.
func (c *cache[K, V]) Refresh(ctx context.Context, k K) {
	if c.closed.Load() || c.opt.Loader == nil {
		return
	}
	s := c.getShard(k)
	e, ok, base := s.base(k, c.clock.NowNanos())
	if ok {
		c.scheduleRefresh(ctx, s, k, e.version, e.val)
		return
	}

	// Absent: load it without making the caller wait.
	rctx := context.WithoutCancel(ctx)
	started := c.flights.TryGo(k, func() (V, error) {
		v, err := c.callLoader(s, k, func() (V, error) { return c.opt.Loader(rctx, k) })
		if err != nil {
			c.log.Warn("refresh failed", slog.Any("key", k), slog.String("error", err.Error()))
			return v, err
		}
		if !c.closed.Load() {
			c.commitLoad(s, k, v, base)
		}
		return v, nil
	})
	if started {
		c.metrics.Refresh()
	}
}

// Invalidate deletes k if present.
func (c *cache[K, V]) Invalidate(k K) {
	if c.closed.Load() {
		return
	}
	if rm, ok := c.getShard(k).remove(k, CauseExplicit); ok {
		c.removed(rm)
	}
}

// InvalidateAll clears the shards one after another.
func (c *cache[K, V]) InvalidateAll() {
	if c.closed.Load() {
		return
	}
	for _, s := range c.shards {
		c.removed(s.clear(CauseExplicit)...)
	}
}

// Stats sums the per-shard counters.
func (c *cache[K, V]) Stats() Stats {
	var st Stats
	if !c.opt.RecordStats {
		return st
	}
	for _, s := range c.shards {
		s.stats.addTo(&st)
	}
	return st
}

// Len returns the total number of resident entries across all shards.
func (c *cache[K, V]) Len() int {
	return int(c.size.Load())
}

// CleanUp drops every expired entry now.
func (c *cache[K, V]) CleanUp() {
	c.sweep()
}

// Close stops the janitor and flushes the removal listener. Idempotent.
func (c *cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		c.wg.Wait()
		if c.listener != nil {
			c.listener.close()
		}
		c.log.Debug("cache closed", slog.Int("entries", c.Len()))
	})
	return nil
}

// ---- loading ----

// load runs a blocking load for k, or waits for the one already running.
func (c *cache[K, V]) load(ctx context.Context, s *shard[K, V], k K) (V, error) {
	for {
		v, kind, err := c.flights.Do(ctx, k, func() (V, error) {
			// double-check after winning the flight: a load or refresh that
			// finished just before us may already have stored k
			e, ok, base := s.base(k, c.clock.NowNanos())
			if ok {
				return e.val, nil
			}
			v, err := c.callLoader(s, k, func() (V, error) { return c.opt.Loader(ctx, k) })
			if err != nil {
				return v, &LoadError{Key: k, Err: err}
			}
			c.commitLoad(s, k, v, base)
			return v, nil
		})
		if kind == singleflight.Load {
			return v, err
		}
		// We waited on a refresh. Its result may not have been committed
		// (the entry expired or was replaced meanwhile), so look again.
		if ctxErr := ctx.Err(); ctxErr != nil {
			var zero V
			return zero, ctxErr
		}
	}
}

// scheduleRefresh starts a background refresh of k unless a load or refresh
// for k is already running. The refresh commits only if the entry still
// carries version.
func (c *cache[K, V]) scheduleRefresh(ctx context.Context, s *shard[K, V], k K, version uint64, old V) {
	rctx := context.WithoutCancel(ctx)
	started := c.flights.TryGo(k, func() (V, error) {
		v, err := c.callLoader(s, k, func() (V, error) {
			if c.opt.Reloader != nil {
				return c.opt.Reloader(rctx, k, old)
			}
			return c.opt.Loader(rctx, k)
		})
		if err != nil {
			c.log.Warn("refresh failed", slog.Any("key", k), slog.String("error", err.Error()))
			return v, err
		}
		if c.closed.Load() {
			return v, nil
		}
		if rm, ok := s.commitRefresh(k, v, c.clock.NowNanos(), version); ok {
			c.removed(rm)
		} else {
			c.log.Debug("refresh discarded", slog.Any("key", k))
		}
		return v, nil
	})
	if started {
		c.metrics.Refresh()
	}
}

// callLoader times fn, records the outcome and turns a panic into an error.
func (c *cache[K, V]) callLoader(s *shard[K, V], k K, fn func() (V, error)) (v V, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLoaderPanic, r)
			c.log.Error("loader panicked", slog.Any("key", k), slog.Any("panic", r))
		}
		d := time.Since(start)
		if c.opt.RecordStats {
			s.stats.recordLoad(d, err)
		}
		c.metrics.ObserveLoad(d, err)
	}()
	return fn()
}

// ---- writes, eviction, notifications ----

// store writes k→v through the shard and enforces MaximumSize.
func (c *cache[K, V]) store(s *shard[K, V], k K, v V) {
	rm, replaced, added := s.store(k, v, c.clock.NowNanos())
	if replaced {
		c.removed(rm)
	}
	if added {
		c.evictOverflow()
	}
	c.metrics.Size(c.Len())
}

// commitLoad stores a loaded value unless a write for k landed while the
// Loader ran; a superseded value is reported as REPLACED instead.
func (c *cache[K, V]) commitLoad(s *shard[K, V], k K, v V, base uint64) {
	rm, notify, added := s.commitLoad(k, v, c.clock.NowNanos(), base)
	if notify {
		c.removed(rm)
	}
	if added {
		c.evictOverflow()
	}
	c.metrics.Size(c.Len())
}

// evictOverflow brings the global entry count back to MaximumSize.
// shard.evict re-checks the count under the shard lock, so concurrent
// writers and removals never take the cache below the limit.
func (c *cache[K, V]) evictOverflow() {
	if c.opt.MaximumSize <= 0 {
		return
	}
	limit := int64(c.opt.MaximumSize)
	for c.size.Load() > limit {
		if !c.evictOne(limit) {
			return
		}
	}
}

// evictOne removes the globally oldest policy candidate while the cache
// holds more than limit entries. It returns false if there was nothing to
// evict or the cache no longer exceeds limit.
func (c *cache[K, V]) evictOne(limit int64) bool {
	for {
		var (
			best      *node[K, V]
			bestShard *shard[K, V]
			bestStamp uint64
		)
		for _, s := range c.shards {
			n, stamp := s.victim()
			if n != nil && (best == nil || stamp < bestStamp) {
				best, bestShard, bestStamp = n, s, stamp
			}
		}
		if best == nil {
			return false
		}
		rm, res := bestShard.evict(best, limit)
		switch res {
		case evicted:
			c.removed(rm)
			return true
		case withinLimit:
			return false
		}
		// The candidate vanished between victim and evict; pick again.
	}
}

// removed reports removals to metrics and queues listener notifications.
func (c *cache[K, V]) removed(rms ...removal[K, V]) {
	if len(rms) == 0 {
		return
	}
	for _, rm := range rms {
		c.metrics.Evict(rm.cause)
	}
	if rms[0].cause != CauseReplaced {
		c.metrics.Size(c.Len())
	}
	if c.listener != nil {
		c.listener.enqueue(rms...)
	}
}

// ---- expiry sweeping ----

func (c *cache[K, V]) sweep() int {
	if !c.ttl.expires() || c.closed.Load() {
		return 0
	}
	now := c.clock.NowNanos()
	n := 0
	for _, s := range c.shards {
		rms := s.sweep(now)
		n += len(rms)
		c.removed(rms...)
	}
	return n
}

// janitor sweeps expired entries every interval until Close.
func (c *cache[K, V]) janitor(interval time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := c.sweep(); n > 0 {
				c.log.Debug("expired entries swept", slog.Int("count", n))
			}
		case <-c.stop:
			return
		}
	}
}

// ---- helpers ----

// getShard picks a shard by hashing the key; a single shard skips hashing.
func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}

func (c *cache[K, V]) recordHit(s *shard[K, V]) {
	if c.opt.RecordStats {
		s.stats.hits.Add(1)
	}
	c.metrics.Hit()
}

func (c *cache[K, V]) recordMiss(s *shard[K, V]) {
	if c.opt.RecordStats {
		s.stats.misses.Add(1)
	}
	c.metrics.Miss()
}

// defaultHashable reports whether util.Hash supports K.
func defaultHashable[K comparable]() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	var zero K
	util.Hash(zero)
	return true
}
