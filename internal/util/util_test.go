package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringerKey struct{ id int }

func (s stringerKey) String() string { return "sk" }

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 64: 64, 65: 128}
	for in, want := range cases {
		assert.Equal(t, want, NextPow2(in), "NextPow2(%d)", in)
	}
	assert.Equal(t, uint64(1<<63), NextPow2(1<<63+1))
}

func TestShardCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, ShardCount(1))
	assert.Equal(t, 4, ShardCount(3))
	assert.Equal(t, 16, ShardCount(16))
	assert.Equal(t, MaxShards, ShardCount(MaxShards+1))

	auto := ShardCount(0)
	require.True(t, IsPowerOfTwo(uint64(auto)))
	require.LessOrEqual(t, auto, 256)
}

func TestShardIndex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ShardIndex(12345, 1))
	assert.Equal(t, int(12345&7), ShardIndex(12345, 8))
	assert.Equal(t, 12345%6, ShardIndex(12345, 6))
}

func TestSplitCeil(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, SplitCeil(0, 4))
	assert.Equal(t, 1, SplitCeil(1, 4))
	assert.Equal(t, 3, SplitCeil(10, 4))
}

func TestHash_StableAndTyped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Equal(t, Hash(int64(42)), Hash(42))
	assert.Equal(t, Hash(stringerKey{1}), Hash("sk"))
	assert.NotEqual(t, Hash(true), Hash(false))

	type opaque struct{ a, b int }
	assert.Panics(t, func() { Hash(opaque{1, 2}) })
}
