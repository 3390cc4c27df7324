package singleflight

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGroup_DoCoalesces(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	var calls atomic.Int64
	release := make(chan struct{})

	fn := func() (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var eg errgroup.Group
	const n = 32
	for range n {
		eg.Go(func() error {
			v, kind, err := g.Do(context.Background(), "k", fn)
			if err != nil {
				return err
			}
			if v != 7 || kind != Load {
				return errors.New("unexpected result")
			}
			return nil
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give followers a chance to queue up behind the leader.
	time.Sleep(10 * time.Millisecond)
	close(release)

	require.NoError(t, eg.Wait())
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 0, g.Len())
}

func TestGroup_ErrorIsShared(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	boom := errors.New("boom")

	_, _, err := g.Do(context.Background(), "k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	// The key is not poisoned: the next call runs fn again.
	v, _, err := g.Do(context.Background(), "k", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestGroup_TryGoSkipsWhenInFlight(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	release := make(chan struct{})
	var calls atomic.Int64

	started := g.TryGo("k", func() (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	})
	require.True(t, started)

	kind, ok := g.InFlight("k")
	require.True(t, ok)
	assert.Equal(t, Refresh, kind)

	assert.False(t, g.TryGo("k", func() (int, error) {
		calls.Add(1)
		return 2, nil
	}))

	close(release)
	require.Eventually(t, func() bool { return g.Len() == 0 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGroup_DoJoinsRefresh(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	release := make(chan struct{})
	refreshErr := errors.New("refresh failed")

	require.True(t, g.TryGo("k", func() (int, error) {
		<-release
		return 0, refreshErr
	}))

	done := make(chan struct{})
	var (
		gotKind Kind
		gotErr  error
	)
	go func() {
		defer close(done)
		_, gotKind, gotErr = g.Do(context.Background(), "k", func() (int, error) {
			t.Error("follower must not run fn")
			return 0, nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)
	<-done

	assert.Equal(t, Refresh, gotKind)
	assert.ErrorIs(t, gotErr, refreshErr)
}

func TestGroup_FollowerContextCancel(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	release := make(chan struct{})
	defer close(release)

	require.True(t, g.TryGo("k", func() (int, error) {
		<-release
		return 1, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := g.Do(ctx, "k", func() (int, error) { return 2, nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGroup_PanicReleasesKey(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	require.Panics(t, func() {
		_, _, _ = g.Do(context.Background(), "k", func() (int, error) { panic("boom") })
	})
	_, ok := g.InFlight("k")
	assert.False(t, ok)
}

// Followers read the published call after done closes; a panicking fn must
// leave them an error rather than a zero value with a nil error.
func TestGroup_PanicFailsFollowers(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	c := &call[int]{done: make(chan struct{}), kind: Load}
	g.m = map[string]*call[int]{"k": c}

	r := g.run("k", c, func() (int, error) { panic("boom") })
	assert.Equal(t, "boom", r)

	select {
	case <-c.done:
	default:
		t.Fatal("done not closed after panic")
	}
	require.Error(t, c.err)
	assert.ErrorIs(t, c.err, ErrPanicked)
	assert.Contains(t, c.err.Error(), "boom")
	assert.Zero(t, c.val)
	assert.Zero(t, g.Len())
}

func TestGroup_TryGoPanicIsContained(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	require.True(t, g.TryGo("k", func() (int, error) { panic("boom") }))
	require.Eventually(t, func() bool { return g.Len() == 0 }, time.Second, time.Millisecond)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "load", Load.String())
	assert.Equal(t, "refresh", Refresh.String())
}
