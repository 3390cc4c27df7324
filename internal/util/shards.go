package util

import (
	"math/bits"
	"runtime"
)

// MaxShards caps the shard count regardless of the requested concurrency level.
const MaxShards = 1 << 16

// ReasonableShardCount picks a practical default shard count based on CPU
// parallelism. Heuristic: nextPow2(2*GOMAXPROCS), clamped to [1..256].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > 256 {
		n = 256
	}
	return n
}

// ShardCount converts a requested concurrency level into a power-of-two
// shard count. A non-positive level selects ReasonableShardCount.
func ShardCount(concurrencyLevel int) int {
	if concurrencyLevel <= 0 {
		return ReasonableShardCount()
	}
	if concurrencyLevel > MaxShards {
		concurrencyLevel = MaxShards
	}
	return int(NextPow2(uint64(concurrencyLevel)))
}

// ShardIndex maps a 64-bit hash to a shard index.
// Assumes shard count is a power of two for the fast mask path,
// but remains correct for arbitrary shard counts (uses modulo).
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}

// SplitCeil divides total across n parts, rounding up. Returns 0 for total <= 0.
func SplitCeil(total, n int) int {
	if total <= 0 || n <= 0 {
		return 0
	}
	return (total + n - 1) / n
}

// IsPowerOfTwo reports whether x is a power of two (> 0).
func IsPowerOfTwo(x uint64) bool { return bits.OnesCount64(x) == 1 }

// NextPow2 returns the smallest power of two >= x; 0 and 1 map to 1.
// Values above 1<<63 are clamped to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	if x > 1<<63 {
		return 1 << 63
	}
	return 1 << bits.Len64(x-1)
}
