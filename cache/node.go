package cache

// node is an intrusive doubly linked list element owned by a shard.
// All fields are guarded by the owning shard's lock.
type node[K comparable, V any] struct {
	key K
	val V

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node[K, V]
	next *node[K, V]

	// written is the Clock reading at the last successful store.
	written int64

	// stamp orders nodes across shards: it is taken from the cache-wide
	// ticket whenever the policy links or promotes the node, so the smallest
	// stamp among shard victims is the globally least recent one.
	stamp uint64

	// version changes on every store. A refresh only commits if the version
	// it started from is still current.
	version uint64
}

// Key returns the node key (part of policy.Node interface).
func (n *node[K, V]) Key() K { return n.key }

// Value returns a pointer to the stored value (part of policy.Node interface).
// Only dereference it while holding the shard lock.
func (n *node[K, V]) Value() *V { return &n.val }

// EntryState describes what the cache is doing with a resident entry.
type EntryState uint8

const (
	// StateLoaded: no loader call is outstanding for the key.
	StateLoaded EntryState = iota
	// StateLoading: a blocking load is outstanding (e.g. the value was Put
	// while an earlier miss was still loading).
	StateLoading
	// StateRefreshing: a background refresh is outstanding; the value shown
	// is the one being served meanwhile.
	StateRefreshing
)

func (s EntryState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateRefreshing:
		return "refreshing"
	default:
		return "loaded"
	}
}

// Entry is a point-in-time copy of a resident entry.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
	// WriteTime is the Clock reading at the last successful store.
	WriteTime int64
	State     EntryState
}
