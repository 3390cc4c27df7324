package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplierCache_Memoizes(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	var calls atomic.Int64
	s, err := NewSupplierCache(func(context.Context) (int64, error) {
		return calls.Add(1), nil
	}, Options[struct{}, int64]{
		ExpireAfterWrite: time.Minute,
		RecordStats:      true,
		Clock:            clk,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := s.Get(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, v)
	}

	clk.add(time.Minute)
	v, err := s.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	s.Invalidate()
	v, err = s.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	st := s.Stats()
	assert.EqualValues(t, 2, st.HitCount)
	assert.EqualValues(t, 3, st.MissCount)
}

func TestSupplierCache_Refresh(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	s, err := NewSupplierCache(func(context.Context) (int64, error) {
		return calls.Add(1), nil
	}, Options[struct{}, int64]{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Get(context.Background())
	require.NoError(t, err)
	s.Refresh(context.Background())
	require.Eventually(t, func() bool {
		v, _ := s.Get(context.Background())
		return v == 2
	}, time.Second, time.Millisecond)
}

func TestSupplierCache_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewSupplierCache[int](nil, Options[struct{}, int]{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	boom := errors.New("boom")
	s, err := NewSupplierCache(func(context.Context) (int, error) { return 0, boom }, Options[struct{}, int]{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.Get(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestFromSupplier(t *testing.T) {
	t.Parallel()

	l := FromSupplier[string](func() (int, error) { return 5, nil })
	v, err := l(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}
