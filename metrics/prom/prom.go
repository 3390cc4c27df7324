// Package prom exports cache.Metrics signals as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/loadcache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	refreshes prometheus.Counter
	loads     *prometheus.HistogramVec
	removals  *prometheus.CounterVec
	sizeEnt   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits, stale reads included",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses, expired reads included",
			ConstLabels: constLabels,
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "refreshes_total",
			Help:        "Background refreshes started",
			ConstLabels: constLabels,
		}),
		loads: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "load_duration_seconds",
				Help:        "Loader call latency by result",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"result"},
		),
		removals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "removals_total",
				Help:        "Entries removed from the cache by cause",
				ConstLabels: constLabels,
			},
			[]string{"cause"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.refreshes, a.loads, a.removals, a.sizeEnt)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// ObserveLoad records one Loader/Reloader call.
func (a *Adapter) ObserveLoad(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	a.loads.WithLabelValues(result).Observe(d.Seconds())
}

// Refresh counts a started background refresh.
func (a *Adapter) Refresh() { a.refreshes.Inc() }

// Evict increments the removal counter with a cause label.
func (a *Adapter) Evict(c cache.RemovalCause) {
	a.removals.WithLabelValues(cause(c)).Inc()
}

// Size updates the resident entries gauge.
func (a *Adapter) Size(entries int) { a.sizeEnt.Set(float64(entries)) }

// cause maps RemovalCause to a stable label value.
func cause(c cache.RemovalCause) string {
	switch c {
	case cache.CauseExplicit:
		return "explicit"
	case cache.CauseReplaced:
		return "replaced"
	case cache.CauseExpired:
		return "expired"
	case cache.CauseSize:
		return "size"
	default:
		return "unknown"
	}
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
