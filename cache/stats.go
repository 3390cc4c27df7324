package cache

import (
	"time"

	"github.com/IvanBrykalov/loadcache/internal/util"
)

// Stats is an immutable snapshot of cache counters. All counters only grow
// over the cache's lifetime; use Minus to get the activity between two
// snapshots.
type Stats struct {
	HitCount           uint64
	MissCount          uint64
	LoadSuccessCount   uint64
	LoadExceptionCount uint64
	TotalLoadTime      time.Duration
	// EvictionCount counts removals made to honour MaximumSize.
	EvictionCount uint64
}

// RequestCount is HitCount + MissCount.
func (s Stats) RequestCount() uint64 { return s.HitCount + s.MissCount }

// HitRate is the share of requests served from the cache; 1 when there were none.
func (s Stats) HitRate() float64 {
	r := s.RequestCount()
	if r == 0 {
		return 1
	}
	return float64(s.HitCount) / float64(r)
}

// MissRate is the share of requests that missed; 0 when there were none.
func (s Stats) MissRate() float64 {
	r := s.RequestCount()
	if r == 0 {
		return 0
	}
	return float64(s.MissCount) / float64(r)
}

// LoadCount is the number of Loader/Reloader calls, successful or not.
func (s Stats) LoadCount() uint64 { return s.LoadSuccessCount + s.LoadExceptionCount }

// LoadExceptionRate is the share of loader calls that failed.
func (s Stats) LoadExceptionRate() float64 {
	n := s.LoadCount()
	if n == 0 {
		return 0
	}
	return float64(s.LoadExceptionCount) / float64(n)
}

// AverageLoadPenalty is the mean time spent in the loader per call.
func (s Stats) AverageLoadPenalty() time.Duration {
	n := s.LoadCount()
	if n == 0 {
		return 0
	}
	return s.TotalLoadTime / time.Duration(n)
}

// Minus returns s - o, clamping each counter at zero.
func (s Stats) Minus(o Stats) Stats {
	sub := func(a, b uint64) uint64 {
		if a < b {
			return 0
		}
		return a - b
	}
	d := s.TotalLoadTime - o.TotalLoadTime
	if d < 0 {
		d = 0
	}
	return Stats{
		HitCount:           sub(s.HitCount, o.HitCount),
		MissCount:          sub(s.MissCount, o.MissCount),
		LoadSuccessCount:   sub(s.LoadSuccessCount, o.LoadSuccessCount),
		LoadExceptionCount: sub(s.LoadExceptionCount, o.LoadExceptionCount),
		TotalLoadTime:      d,
		EvictionCount:      sub(s.EvictionCount, o.EvictionCount),
	}
}

// statsCounter is the per-shard recorder. Each counter has its own cache
// line; snapshot sums shards without locking them.
type statsCounter struct {
	hits      util.PaddedAtomicUint64
	misses    util.PaddedAtomicUint64
	loadOK    util.PaddedAtomicUint64
	loadErr   util.PaddedAtomicUint64
	loadNanos util.PaddedAtomicInt64
	evictions util.PaddedAtomicUint64
}

func (c *statsCounter) recordLoad(d time.Duration, err error) {
	if err != nil {
		c.loadErr.Add(1)
	} else {
		c.loadOK.Add(1)
	}
	c.loadNanos.Add(int64(d))
}

func (c *statsCounter) addTo(s *Stats) {
	s.HitCount += c.hits.Load()
	s.MissCount += c.misses.Load()
	s.LoadSuccessCount += c.loadOK.Load()
	s.LoadExceptionCount += c.loadErr.Load()
	s.TotalLoadTime += time.Duration(c.loadNanos.Load())
	s.EvictionCount += c.evictions.Load()
}
