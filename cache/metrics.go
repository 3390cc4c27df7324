package cache

import "time"

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                                   {}
func (NoopMetrics) Miss()                                  {}
func (NoopMetrics) ObserveLoad(d time.Duration, err error) {}
func (NoopMetrics) Refresh()                               {}
func (NoopMetrics) Evict(RemovalCause)                     {}
func (NoopMetrics) Size(entries int)                       {}

var _ Metrics = NoopMetrics{}

// monoClock measures time from a fixed origin with the monotonic reading of
// time.Time, so wall-clock jumps never expire or refresh entries early.
type monoClock struct{ origin time.Time }

func newMonoClock() monoClock { return monoClock{origin: time.Now()} }

func (c monoClock) NowNanos() int64 { return int64(time.Since(c.origin)) }
