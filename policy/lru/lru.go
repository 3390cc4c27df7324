// Package lru implements least-recently-used eviction, either by access
// order (classic LRU) or by creation order (FIFO).
package lru

import "github.com/IvanBrykalov/loadcache/policy"

// Order selects what counts as "recent".
type Order uint8

const (
	// AccessOrder promotes entries on every read and write.
	AccessOrder Order = iota
	// CreationOrder ignores reads and updates; the oldest created entry goes first.
	CreationOrder
)

type lru[K comparable, V any] struct {
	h     policy.Hooks[K, V]
	order Order
}

type lruPolicy[K comparable, V any] struct{ order Order }

// New returns an access-order LRU policy factory.
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{order: AccessOrder} }

// NewWithOrder returns an LRU policy factory with the given ordering.
func NewWithOrder[K comparable, V any](o Order) policy.Policy[K, V] {
	return lruPolicy[K, V]{order: o}
}

// New binds the shard hooks and returns a shard-local instance.
func (p lruPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lru[K, V]{h: h, order: p.order}
}

func (p lruPolicy[K, V]) Name() string {
	if p.order == CreationOrder {
		return "fifo"
	}
	return "lru"
}

func (p *lru[K, V]) OnAdd(n policy.Node[K, V]) { p.h.PushFront(n) }

func (p *lru[K, V]) OnGet(n policy.Node[K, V]) {
	if p.order == AccessOrder {
		p.h.MoveToFront(n)
	}
}

// OnUpdate treats a write as a use in access order. In creation order the
// entry keeps its original position.
func (p *lru[K, V]) OnUpdate(n policy.Node[K, V]) { p.OnGet(n) }

func (p *lru[K, V]) OnRemove(_ policy.Node[K, V]) {}

// Victim is always the list tail.
func (p *lru[K, V]) Victim() policy.Node[K, V] { return p.h.Back() }
