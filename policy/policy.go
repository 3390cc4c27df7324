// Package policy defines the contracts between a cache shard and its
// eviction policy.
package policy

// Node is the minimal view of a cache entry a policy needs.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks expose O(1) list operations on the shard's intrusive MRU/LRU list.
// Implementations are provided by the shard.
//
// Concurrency: all hook calls happen under the shard lock.
// Hooks manage only the list; the shard owns the key->node map.
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node[K, V])
	// PushFront links a new node at MRU.
	PushFront(Node[K, V])
	// Back returns the current LRU node (or nil if empty).
	Back() Node[K, V]
	// Len returns the number of resident nodes in the shard.
	Len() int
	// Cap returns the shard's share of the maximum size (0 = unbounded).
	Cap() int
}

// ShardPolicy is a per-shard policy instance bound to shard hooks.
// All methods are invoked under the shard lock.
//
// Semantics:
//   - OnAdd links a new node (usually via Hooks.PushFront).
//   - OnGet/OnUpdate record a use of the node.
//   - OnRemove is called before the shard unlinks a node, for any reason.
//   - Victim names the node this shard would give up next, or nil if the
//     shard is empty. It must not mutate state: the cache compares victims
//     across shards and may pick another shard's candidate.
type ShardPolicy[K comparable, V any] interface {
	OnAdd(Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnRemove(Node[K, V])
	Victim() Node[K, V]
}

// Policy is a factory that creates shard-local policy instances.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) ShardPolicy[K, V]
	// Name is a short stable identifier used in logs and metric labels.
	Name() string
}
