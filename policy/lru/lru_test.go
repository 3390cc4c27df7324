package lru

import (
	"testing"

	"github.com/IvanBrykalov/loadcache/policy"
)

type testNode[K comparable, V any] struct {
	k K
	v V
}

func (n *testNode[K, V]) Key() K    { return n.k }
func (n *testNode[K, V]) Value() *V { return &n.v }

type mockHooks[K comparable, V any] struct {
	pushFrontCnt   int
	moveToFrontCnt int

	lastPush policy.Node[K, V]
	lastMove policy.Node[K, V]

	backVal policy.Node[K, V]
}

func (h *mockHooks[K, V]) MoveToFront(n policy.Node[K, V]) { h.moveToFrontCnt++; h.lastMove = n }
func (h *mockHooks[K, V]) PushFront(n policy.Node[K, V])   { h.pushFrontCnt++; h.lastPush = n }
func (h *mockHooks[K, V]) Back() policy.Node[K, V]         { return h.backVal }
func (h *mockHooks[K, V]) Len() int                        { return 0 }
func (h *mockHooks[K, V]) Cap() int                        { return 0 }

func TestLRU_OnAdd_PushFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks[string, int]{}
	p := New[string, int]().New(h)

	n := &testNode[string, int]{k: "k1", v: 1}
	p.OnAdd(n)

	if h.pushFrontCnt != 1 || h.lastPush != n {
		t.Fatalf("OnAdd must call PushFront exactly once with the node")
	}
	if h.moveToFrontCnt != 0 {
		t.Fatalf("OnAdd must not call MoveToFront")
	}
}

func TestLRU_AccessOrder_Promotes(t *testing.T) {
	t.Parallel()

	h := &mockHooks[string, int]{}
	p := New[string, int]().New(h)

	n := &testNode[string, int]{k: "k2", v: 2}
	p.OnGet(n)
	p.OnUpdate(n)

	if h.moveToFrontCnt != 2 || h.lastMove != n {
		t.Fatalf("OnGet/OnUpdate must promote in access order, got %d moves", h.moveToFrontCnt)
	}
}

func TestLRU_CreationOrder_IgnoresUse(t *testing.T) {
	t.Parallel()

	h := &mockHooks[string, int]{}
	p := NewWithOrder[string, int](CreationOrder).New(h)

	n := &testNode[string, int]{k: "k3", v: 3}
	p.OnAdd(n)
	p.OnGet(n)
	p.OnUpdate(n)

	if h.moveToFrontCnt != 0 {
		t.Fatalf("creation order must never promote, got %d moves", h.moveToFrontCnt)
	}
}

func TestLRU_VictimIsBack(t *testing.T) {
	t.Parallel()

	tail := &testNode[string, int]{k: "tail"}
	h := &mockHooks[string, int]{backVal: tail}
	p := New[string, int]().New(h)

	if got := p.Victim(); got != tail {
		t.Fatalf("Victim must be the list tail, got %v", got)
	}
}

func TestLRU_Name(t *testing.T) {
	t.Parallel()

	if got := New[string, int]().Name(); got != "lru" {
		t.Fatalf("want lru, got %q", got)
	}
	if got := NewWithOrder[string, int](CreationOrder).Name(); got != "fifo" {
		t.Fatalf("want fifo, got %q", got)
	}
}
