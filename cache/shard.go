package cache

import (
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/loadcache/internal/util"
	"github.com/IvanBrykalov/loadcache/policy"
)

// removal is a pending RemovalListener notification. Shards collect them
// under the lock; the cache dispatches them after the lock is released.
type removal[K comparable, V any] struct {
	key   K
	val   V
	cause RemovalCause
}

// shard is an independent partition of the cache with its own lock, map,
// and an intrusive doubly linked list (head=MRU, tail=LRU).
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu   sync.RWMutex
	m    map[K]*node[K, V]
	head *node[K, V] // MRU
	tail *node[K, V] // LRU
	len  int
	cap  int // share of MaximumSize, informs policy sizing (0 = unbounded)

	pol policy.ShardPolicy[K, V]
	ttl ttls

	// Shared with the cache and the other shards.
	ticket *atomic.Uint64 // stamps and versions
	size   *atomic.Int64  // resident entries across all shards

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_     util.CacheLinePad
	stats statsCounter
}

type lookup[V any] struct {
	val     V
	version uint64
	written int64
	state   freshness
}

func newShard[K comparable, V any](initial, capacity int, pol policy.Policy[K, V], t ttls,
	ticket *atomic.Uint64, size *atomic.Int64) *shard[K, V] {
	s := &shard[K, V]{
		m:      make(map[K]*node[K, V], initial),
		cap:    capacity,
		ttl:    t,
		ticket: ticket,
		size:   size,
	}
	s.pol = pol.New(shardHooks[K, V]{s: s})
	return s
}

// access classifies the entry for k at now and records a use on success.
// An expired entry is removed and reported back for notification.
func (s *shard[K, V]) access(k K, now int64) (lookup[V], bool, removal[K, V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return lookup[V]{}, false, removal[K, V]{}, false
	}
	f := s.ttl.classify(now, n.written)
	if f == expired {
		return lookup[V]{}, false, s.deleteLocked(n, CauseExpired), true
	}
	s.pol.OnGet(n)
	return lookup[V]{val: n.val, version: n.version, written: n.written, state: f}, true, removal[K, V]{}, false
}

// peek reads the entry for k without promoting it or removing it.
// Expired entries are reported as absent.
func (s *shard[K, V]) peek(k K, now int64) (lookup[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.m[k]
	if !ok {
		return lookup[V]{}, false
	}
	f := s.ttl.classify(now, n.written)
	if f == expired {
		return lookup[V]{}, false
	}
	return lookup[V]{val: n.val, version: n.version, written: n.written, state: f}, true
}

// store inserts or overwrites k. It returns the REPLACED notification for an
// overwrite and whether a new entry was added (so the caller can enforce
// the size bound).
func (s *shard[K, V]) store(k K, v V, now int64) (rm removal[K, V], replaced, added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		return s.overwriteLocked(n, v, now), true, false
	}
	s.insertLocked(k, v, now)
	return removal[K, V]{}, false, true
}

// base reads the entry for k like peek and also returns the version a load
// for k starts from: the resident node's version, expired or not, or 0 when
// k is absent.
func (s *shard[K, V]) base(k K, now int64) (lookup[V], bool, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.m[k]
	if !ok {
		return lookup[V]{}, false, 0
	}
	f := s.ttl.classify(now, n.written)
	if f == expired {
		return lookup[V]{}, false, n.version
	}
	return lookup[V]{val: n.val, version: n.version, written: n.written, state: f}, true, n.version
}

// commitLoad stores a loaded value unless k was written after the load
// started from version base. A superseded value is not stored; it comes back
// as a REPLACED notification instead. Versions start at 1, so base 0 means
// the load started on an absent key.
func (s *shard[K, V]) commitLoad(k K, v V, now int64, base uint64) (rm removal[K, V], notify, added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	switch {
	case !ok:
		s.insertLocked(k, v, now)
		return removal[K, V]{}, false, true
	case n.version == base:
		return s.overwriteLocked(n, v, now), true, false
	default:
		return removal[K, V]{key: k, val: v, cause: CauseReplaced}, true, false
	}
}

// commitRefresh overwrites k only if it still holds the version the refresh
// started from. A refresh never resurrects an invalidated key or clobbers a
// newer Put.
func (s *shard[K, V]) commitRefresh(k K, v V, now int64, version uint64) (removal[K, V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok || n.version != version {
		return removal[K, V]{}, false
	}
	return s.overwriteLocked(n, v, now), true
}

// remove deletes k if present.
func (s *shard[K, V]) remove(k K, cause RemovalCause) (removal[K, V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return removal[K, V]{}, false
	}
	return s.deleteLocked(n, cause), true
}

// clear removes every entry and returns their notifications.
func (s *shard[K, V]) clear(cause RemovalCause) []removal[K, V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.len == 0 {
		return nil
	}
	out := make([]removal[K, V], 0, s.len)
	for n := s.head; n != nil; {
		next := n.next
		out = append(out, s.deleteLocked(n, cause))
		n = next
	}
	return out
}

// sweep removes every entry that is expired at now.
func (s *shard[K, V]) sweep(now int64) []removal[K, V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []removal[K, V]
	for n := s.head; n != nil; {
		next := n.next
		if s.ttl.classify(now, n.written) == expired {
			out = append(out, s.deleteLocked(n, CauseExpired))
		}
		n = next
	}
	return out
}

// victim returns the policy's eviction candidate and its stamp.
func (s *shard[K, V]) victim() (*node[K, V], uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.pol.Victim()
	if v == nil {
		return nil, 0
	}
	n := v.(*node[K, V])
	return n, n.stamp
}

// evictResult is the outcome of shard.evict.
type evictResult uint8

const (
	evicted     evictResult = iota
	victimGone              // n left the shard; pick another victim
	withinLimit             // the cache no longer exceeds its limit
)

// evict removes n if it is still resident and the cache still holds more
// than limit entries. The size check and decrement happen under the shard
// lock with n confirmed present, so concurrent removals elsewhere can never
// push the cache below limit.
func (s *shard[K, V]) evict(n *node[K, V], limit int64) (removal[K, V], evictResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.m[n.key]; !ok || cur != n {
		return removal[K, V]{}, victimGone
	}
	for {
		size := s.size.Load()
		if size <= limit {
			return removal[K, V]{}, withinLimit
		}
		if s.size.CompareAndSwap(size, size-1) {
			break
		}
	}
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, n.key)
	s.stats.evictions.Add(1)
	return removal[K, V]{key: n.key, val: n.val, cause: CauseSize}, evicted
}

// Len returns the number of resident entries in this shard.
func (s *shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

func (s *shard[K, V]) overwriteLocked(n *node[K, V], v V, now int64) removal[K, V] {
	old := n.val
	n.val = v
	n.written = now
	n.version = s.ticket.Add(1)
	s.pol.OnUpdate(n)
	return removal[K, V]{key: n.key, val: old, cause: CauseReplaced}
}

func (s *shard[K, V]) deleteLocked(n *node[K, V], cause RemovalCause) removal[K, V] {
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, n.key)
	s.size.Add(-1)
	return removal[K, V]{key: n.key, val: n.val, cause: cause}
}

func (s *shard[K, V]) insertLocked(k K, v V, now int64) {
	n := &node[K, V]{key: k, val: v, written: now, version: s.ticket.Add(1)}
	s.m[k] = n
	s.pol.OnAdd(n)
	s.size.Add(1)
}

// insertFront inserts n at MRU in O(1).
func (s *shard[K, V]) insertFront(n *node[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
	n.stamp = s.ticket.Add(1)
}

// moveToFront promotes n to MRU in O(1).
func (s *shard[K, V]) moveToFront(n *node[K, V]) {
	n.stamp = s.ticket.Add(1)
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
}

// unlink removes n from the list in O(1).
func (s *shard[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.insertFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) Len() int                        { return h.s.len }
func (h shardHooks[K, V]) Cap() int                        { return h.s.cap }

func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	// Return a nil interface, not a typed nil, for an empty shard.
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
