// Package singleflight coordinates per-key loads and refreshes so that at most
// one loader call per key is outstanding at any time.
package singleflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPanicked is wrapped by the error handed to callers that shared a call
// whose fn panicked.
var ErrPanicked = errors.New("singleflight: fn panicked")

// Kind tells why a call was started.
type Kind uint8

const (
	// Load is a blocking load on a miss or after hard expiry.
	Load Kind = iota
	// Refresh is a background reload of a stale entry.
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "load"
}

// Group is a registry of in-flight calls keyed by K.
//
// Concurrency notes:
//   - The first caller for a key becomes the leader and runs fn; the key stays
//     registered until fn returns, whatever its kind. Loads and refreshes for
//     one key are therefore linearized.
//   - Followers wait on c.done. Publishing (val, err) happens-before
//     close(c.done), so reads after <-done observe the final values.
//   - Cancelling ctx in a follower unblocks only that follower; it does
//     NOT cancel the leader's fn.
//   - If fn panics, followers get an error wrapping ErrPanicked. The leader
//     of Do re-panics; a TryGo call has no caller to panic into.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{}
	kind Kind
	val  V
	err  error
}

// Do runs fn as a blocking load for key unless a call is already in flight,
// in which case it waits for that call and returns its result. The returned
// Kind is the kind of the call whose result is returned, so a caller that
// joined a failed refresh can tell it apart from a failed load.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, Kind, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.kind, c.err
		case <-ctx.Done():
			var zero V
			return zero, c.kind, ctx.Err()
		}
	}

	c := &call[V]{done: make(chan struct{}), kind: Load}
	g.m[key] = c
	g.mu.Unlock()

	if r := g.run(key, c, fn); r != nil {
		panic(r)
	}
	return c.val, Load, c.err
}

// TryGo starts fn on a new goroutine as a refresh for key and returns true.
// If any call for key is in flight it does nothing and returns false; the
// caller is expected to keep serving what it has.
func (g *Group[K, V]) TryGo(key K, fn func() (V, error)) bool {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if _, ok := g.m[key]; ok {
		g.mu.Unlock()
		return false
	}
	c := &call[V]{done: make(chan struct{}), kind: Refresh}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(key, c, fn)
	return true
}

// InFlight reports whether a call for key is outstanding and of which kind.
func (g *Group[K, V]) InFlight(key K) (Kind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.m[key]
	if !ok {
		return 0, false
	}
	return c.kind, true
}

// Len returns the number of outstanding calls.
func (g *Group[K, V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

// run executes fn, publishes its result and removes the in-flight marker.
// The marker is removed even if fn panics, so the key never stays locked;
// the recovered value is returned and waiters see an ErrPanicked error.
func (g *Group[K, V]) run(key K, c *call[V], fn func() (V, error)) (panicked any) {
	defer func() {
		if r := recover(); r != nil {
			panicked = r
			var zero V
			c.val, c.err = zero, fmt.Errorf("%w: %v", ErrPanicked, r)
		}
		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
		close(c.done)
	}()
	c.val, c.err = fn()
	return nil
}
