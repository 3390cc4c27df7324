package cache

import "context"

// FromFunc adapts a context-free function into a Loader.
func FromFunc[K comparable, V any](fn func(K) (V, error)) Loader[K, V] {
	return func(_ context.Context, k K) (V, error) { return fn(k) }
}

// FromSupplier adapts a function that ignores the key into a Loader. Every
// key loads the same way; this is mostly useful for single-valued caches.
func FromSupplier[K comparable, V any](fn func() (V, error)) Loader[K, V] {
	return func(context.Context, K) (V, error) { return fn() }
}
