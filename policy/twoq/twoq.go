// Package twoq implements the 2Q eviction policy.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/loadcache/policy"
)

// twoQ keeps first-time entries in a probation queue (A1in) and promotes them
// to the main queue (Am) on their second use. Keys evicted from A1in are
// remembered in a ghost queue (A1out) so a quick re-admission skips probation.
//
// Am ordering is the shard's own MRU/LRU list; A1in membership is tracked
// here. Queue sizes are fractions of the shard's capacity, so one policy value
// serves any shard count.
//
// Concurrency: all methods are called under the shard lock.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	inFrac    float64
	ghostFrac float64

	inList *list.List
	inIdx  map[policy.Node[K, V]]*list.Element

	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

type twoQPolicy[K comparable, V any] struct {
	inFrac    float64
	ghostFrac float64
}

// New constructs a 2Q policy factory. inFrac is the A1in share of a shard's
// capacity (typically 0.25) and ghostFrac the A1out share (0.5 to 1.0).
// Out-of-range fractions fall back to those defaults.
func New[K comparable, V any](inFrac, ghostFrac float64) policy.Policy[K, V] {
	if inFrac <= 0 || inFrac >= 1 {
		inFrac = 0.25
	}
	if ghostFrac <= 0 {
		ghostFrac = 0.5
	}
	return twoQPolicy[K, V]{inFrac: inFrac, ghostFrac: ghostFrac}
}

func (p twoQPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &twoQ[K, V]{
		h:         h,
		inFrac:    p.inFrac,
		ghostFrac: p.ghostFrac,
		inList:    list.New(),
		inIdx:     make(map[policy.Node[K, V]]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

func (p twoQPolicy[K, V]) Name() string { return "2q" }

// capIn is the A1in budget for the bound shard. Unbounded shards never evict,
// so any positive value works there.
func (q *twoQ[K, V]) capIn() int {
	return atLeastOne(int(float64(q.h.Cap()) * q.inFrac))
}

func (q *twoQ[K, V]) capGhost() int {
	return atLeastOne(int(float64(q.h.Cap()) * q.ghostFrac))
}

// OnAdd admits a remembered key straight into Am; everything else starts in A1in.
func (q *twoQ[K, V]) OnAdd(n policy.Node[K, V]) {
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.h.PushFront(n)
		return
	}
	q.h.PushFront(n)
	q.inIdx[n] = q.inList.PushFront(n)
}

// OnGet promotes an A1in node into Am, then moves it to MRU.
func (q *twoQ[K, V]) OnGet(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnUpdate follows OnGet semantics.
func (q *twoQ[K, V]) OnUpdate(n policy.Node[K, V]) { q.OnGet(n) }

// OnRemove drops A1in tracking and remembers the key as a ghost.
// Removals from Am do not populate ghosts.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for limit := q.capGhost(); q.ghostList.Len() > limit; {
		tail := q.ghostList.Back()
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}

// Victim prefers the oldest probation entry while A1in is over budget,
// otherwise the shard's LRU tail.
func (q *twoQ[K, V]) Victim() policy.Node[K, V] {
	if q.inList.Len() > q.capIn() {
		return q.inList.Back().Value.(policy.Node[K, V])
	}
	return q.h.Back()
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
