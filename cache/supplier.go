package cache

import "context"

// SupplierCache memoizes the result of a single supplier under the same
// expiry and refresh rules as LoadingCache. It is a LoadingCache with one
// implicit key.
type SupplierCache[V any] struct {
	c LoadingCache[struct{}, V]
}

// NewSupplierCache builds a SupplierCache. opt configures TTLs, stats,
// listener, metrics and logging; its Loader, Hasher, ConcurrencyLevel and
// sizing fields are overridden.
func NewSupplierCache[V any](supplier func(ctx context.Context) (V, error), opt Options[struct{}, V]) (*SupplierCache[V], error) {
	if supplier == nil {
		return nil, &ConfigError{Field: "Loader", Reason: "supplier is nil"}
	}
	opt.Loader = func(ctx context.Context, _ struct{}) (V, error) { return supplier(ctx) }
	opt.ConcurrencyLevel = 1
	opt.InitialCapacity = 1
	opt.MaximumSize = 0
	opt.Hasher = func(struct{}) uint64 { return 0 }

	c, err := New(opt)
	if err != nil {
		return nil, err
	}
	return &SupplierCache[V]{c: c}, nil
}

// Get returns the memoized value, calling the supplier when there is none or
// it has expired.
func (s *SupplierCache[V]) Get(ctx context.Context) (V, error) { return s.c.Get(ctx, struct{}{}) }

// Refresh recomputes the value in the background.
func (s *SupplierCache[V]) Refresh(ctx context.Context) { s.c.Refresh(ctx, struct{}{}) }

// Invalidate forgets the memoized value.
func (s *SupplierCache[V]) Invalidate() { s.c.Invalidate(struct{}{}) }

func (s *SupplierCache[V]) Stats() Stats { return s.c.Stats() }

func (s *SupplierCache[V]) Close() error { return s.c.Close() }
